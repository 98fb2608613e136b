package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"jobtracker-backend/internal/mail/scheduler"
	mailUsecase "jobtracker-backend/internal/mail/usecase"
	"jobtracker-backend/pkg/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	syncOwner      string
	syncQuery      string
	syncSkipCursor bool
	sweepDate      string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync for an owner and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, c, err := loadContainer()
		if err != nil {
			return err
		}
		return c.Invoke(func(syncer mailUsecase.SyncUsecase, logger *zap.Logger) error {
			defer logger.Sync()
			result, err := syncer.SyncOwner(cmd.Context(), syncOwner, mailUsecase.SyncOptions{
				QueryOverride:     syncQuery,
				SkipCursorAdvance: syncSkipCursor,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		})
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Re-sync one civil day for every owner without moving cursors",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, c, err := loadContainer()
		if err != nil {
			return err
		}
		at, err := sweepTime(sweepDate, cfg, time.Now())
		if err != nil {
			return err
		}
		return c.Invoke(func(sweep *scheduler.DailySweepScheduler, logger *zap.Logger) error {
			defer logger.Sync()
			report, err := sweep.RunOnce(cmd.Context(), at)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		})
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncOwner, "owner", "", "mailbox owner email address")
	syncCmd.Flags().StringVar(&syncQuery, "query", "", "search query replacing the cursor-derived one")
	syncCmd.Flags().BoolVar(&syncSkipCursor, "skip-cursor", false, "leave the stored cursor untouched")
	_ = syncCmd.MarkFlagRequired("owner")

	sweepCmd.Flags().StringVar(&sweepDate, "date", "", "civil day to sweep as YYYY-MM-DD (default yesterday)")
}

// sweepTime returns an instant on the day after date, so that the sweep's
// prior-day window covers date itself.
func sweepTime(date string, cfg *config.Config, now time.Time) (time.Time, error) {
	loc := cfg.Location()
	if date == "" {
		return now.In(loc), nil
	}
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: %w", date, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day()+1, 12, 0, 0, 0, loc), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
