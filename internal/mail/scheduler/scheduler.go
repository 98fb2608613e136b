package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	maildomain "jobtracker-backend/internal/mail/domain"
	"jobtracker-backend/internal/mail/usecase"

	"go.uber.org/zap"
)

const DefaultConcurrency = 3

// OwnerLister yields every owner that has stored credentials.
type OwnerLister interface {
	ListOwners(ctx context.Context) ([]string, error)
}

// SweepConfig configures the daily sweep.
type SweepConfig struct {
	RunAt       string // HH:MM in Location
	Location    *time.Location
	Concurrency int
}

// SweepReport summarizes one sweep.
type SweepReport struct {
	Day        string `json:"day"`
	Query      string `json:"query"`
	Owners     int    `json:"owners"`
	Synced     int    `json:"synced"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	Fetched    int    `json:"fetched"`
	Classified int    `json:"classified"`
}

// DailySweepScheduler re-syncs the previous civil day for every owner once a
// day, without moving anyone's cursor.
type DailySweepScheduler struct {
	owners      OwnerLister
	sync        usecase.SyncUsecase
	loc         *time.Location
	hour        int
	minute      int
	concurrency int
	now         func() time.Time
	logger      *zap.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewDailySweepScheduler(owners OwnerLister, syncer usecase.SyncUsecase, cfg SweepConfig, logger *zap.Logger) (*DailySweepScheduler, error) {
	hour, minute, err := ParseRunAt(cfg.RunAt)
	if err != nil {
		return nil, err
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &DailySweepScheduler{
		owners:      owners,
		sync:        syncer,
		loc:         loc,
		hour:        hour,
		minute:      minute,
		concurrency: cfg.Concurrency,
		now:         time.Now,
		logger:      logger.Named("sweep"),
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
	}, nil
}

// ParseRunAt parses a 24-hour "HH:MM" clock time.
func ParseRunAt(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid run time %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// NextRun returns the first hour:minute in loc strictly after now.
func NextRun(now time.Time, loc *time.Location, hour, minute int) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(now) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}

// PriorDayWindow returns the epoch-second bounds [after, before) of the civil
// day before at, in loc.
func PriorDayWindow(at time.Time, loc *time.Location) (after, before int64) {
	local := at.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	yesterday := time.Date(local.Year(), local.Month(), local.Day()-1, 0, 0, 0, 0, loc)
	return yesterday.Unix(), today.Unix()
}

func SweepQuery(after, before int64) string {
	return fmt.Sprintf("after:%d before:%d", after, before)
}

// Start runs the sweep loop in the background until Stop or ctx is done.
func (s *DailySweepScheduler) Start(ctx context.Context) {
	s.logger.Info("daily sweep scheduled",
		zap.String("run_at", fmt.Sprintf("%02d:%02d", s.hour, s.minute)),
		zap.String("timezone", s.loc.String()),
		zap.Int("concurrency", s.concurrency))

	go func() {
		defer close(s.done)
		for {
			now := s.now()
			next := NextRun(now, s.loc, s.hour, s.minute)
			timer := time.NewTimer(next.Sub(now))

			select {
			case <-timer.C:
				if _, err := s.RunOnce(ctx, next); err != nil {
					s.logger.Error("sweep failed", zap.Error(err))
				}
			case <-s.stopChan:
				timer.Stop()
				s.logger.Info("daily sweep stopped")
				return
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
	}()
}

// Stop ends the loop and waits for an in-flight sweep to finish. It must only
// be called after Start.
func (s *DailySweepScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	<-s.done
}

// RunOnce sweeps the civil day before at for every owner. The error is
// non-nil only when the owner list cannot be read.
func (s *DailySweepScheduler) RunOnce(ctx context.Context, at time.Time) (SweepReport, error) {
	after, before := PriorDayWindow(at, s.loc)
	report := SweepReport{
		Day:   time.Unix(after, 0).In(s.loc).Format(time.DateOnly),
		Query: SweepQuery(after, before),
	}

	owners, err := s.owners.ListOwners(ctx)
	if err != nil {
		return report, fmt.Errorf("list owners: %w", err)
	}
	report.Owners = len(owners)
	s.logger.Info("sweep started", zap.String("day", report.Day), zap.Int("owners", len(owners)))

	jobs := make(chan string)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < s.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for owner := range jobs {
				res, err := s.sync.SyncOwner(ctx, owner, usecase.SyncOptions{
					QueryOverride:     report.Query,
					SkipCursorAdvance: true,
				})
				mu.Lock()
				s.record(&report, owner, res, err)
				mu.Unlock()
			}
		}()
	}

feed:
	for _, owner := range owners {
		select {
		case jobs <- owner:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	s.logger.Info("sweep finished",
		zap.String("day", report.Day),
		zap.Int("synced", report.Synced),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("classified", report.Classified))
	return report, nil
}

func (s *DailySweepScheduler) record(report *SweepReport, owner string, res *usecase.SyncResult, err error) {
	log := s.logger.With(zap.String("owner", owner))
	switch {
	case err == nil:
		report.Synced++
		if res != nil {
			report.Fetched += res.FetchedCount
			report.Classified += res.ClassifiedCount
		}
	case errors.Is(err, maildomain.ErrCredentialMissing):
		report.Skipped++
		log.Warn("no usable credential, skipping", zap.Error(err))
	case errors.Is(err, maildomain.ErrSyncInProgress):
		report.Skipped++
		log.Info("sync already running, skipping")
	default:
		report.Failed++
		log.Error("sweep sync failed", zap.Error(err))
	}
}
