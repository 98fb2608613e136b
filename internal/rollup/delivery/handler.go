package delivery

import (
	"errors"
	"net/http"

	authdelivery "jobtracker-backend/internal/auth/delivery"
	rollupdto "jobtracker-backend/internal/rollup/dto"
	"jobtracker-backend/internal/rollup/repository"
	"jobtracker-backend/internal/rollup/usecase"

	"github.com/gin-gonic/gin"
)

type RollupHandler struct {
	rollupUsecase usecase.RollupUsecase
}

func NewRollupHandler(rollupUsecase usecase.RollupUsecase) *RollupHandler {
	return &RollupHandler{rollupUsecase: rollupUsecase}
}

// ListRollups
// GET /api/rollups?sort=company|updated
func (h *RollupHandler) ListRollups(c *gin.Context) {
	rollups, err := h.rollupUsecase.ListRollups(c.Request.Context(), authdelivery.OwnerFromContext(c), c.DefaultQuery("sort", repository.SortByCompany))
	if err != nil {
		if errors.Is(err, repository.ErrInvalidSort) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list rollups"})
		return
	}

	out := make([]*rollupdto.RollupResponse, 0, len(rollups))
	for _, r := range rollups {
		resp, err := rollupdto.NewRollupResponse(r)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "corrupt rollup comments"})
			return
		}
		out = append(out, resp)
	}
	c.JSON(http.StatusOK, gin.H{"rollups": out, "total": len(out)})
}
