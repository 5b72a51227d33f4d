// Package sweeper periodically re-reconciles deliveries that were left
// hidden, typically after a crash or a mover that never completed. It
// scans the import roots of delay-enabled instances for sentinel files
// and replays the reconciliation for each affected delivery.
package sweeper

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/arrhook/arrhook/internal/config"
	"github.com/arrhook/arrhook/internal/history"
	"github.com/arrhook/arrhook/internal/models"
	"github.com/arrhook/arrhook/internal/notify"
	"github.com/arrhook/arrhook/internal/observability"
)

// DeliveryProcessor is the notifier surface the sweeper drives.
type DeliveryProcessor interface {
	Instance() config.NamedInstance
	ProcessFile(ctx context.Context, sourcePath, destPath string) (*notify.Result, error)
}

// Sweeper re-runs reconciliation for dangling hidden deliveries on a
// cron schedule.
type Sweeper struct {
	processors []DeliveryProcessor
	store      *history.Store
	schedule   cron.Schedule
	logger     *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// New creates a sweeper. The store may be nil to skip history recording.
func New(processors []DeliveryProcessor, store *history.Store, cfg config.SweepConfig, logger *slog.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = slog.Default()
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", cfg.Schedule, err)
	}

	return &Sweeper{
		processors: processors,
		store:      store,
		schedule:   schedule,
		logger:     observability.WithComponent(logger, "sweeper"),
	}, nil
}

// Start launches the sweep loop. It returns immediately.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.stopped = make(chan struct{})

	go s.run(ctx)
}

// Stop halts the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, stopped := s.cancel, s.stopped
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-stopped
	}
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.stopped)

	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			swept := s.Sweep(ctx)
			if swept > 0 {
				s.logger.Info("sweep finished", slog.Int("deliveries", swept))
			}
		}
	}
}

// Sweep runs one pass over all delay-enabled import instances and
// returns how many dangling deliveries were re-reconciled.
func (s *Sweeper) Sweep(ctx context.Context) int {
	swept := 0
	for _, proc := range s.processors {
		inst := proc.Instance()
		if inst.Mode != config.ModeImport || !inst.DelayImport {
			continue
		}
		swept += s.sweepInstance(ctx, proc, inst)
	}
	return swept
}

func (s *Sweeper) sweepInstance(ctx context.Context, proc DeliveryProcessor, inst config.NamedInstance) int {
	entries, err := os.ReadDir(inst.ImportRoot)
	if err != nil {
		s.logger.Warn("cannot scan import root",
			slog.String("instance", inst.Name),
			slog.String("root", inst.ImportRoot),
			slog.String("error", err.Error()),
		)
		return 0
	}

	swept := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		deliveryDir := filepath.Join(inst.ImportRoot, entry.Name())
		hidden := findHidden(deliveryDir)
		if hidden == "" {
			continue
		}

		// Replaying the original notification for the hidden file
		// either re-delays (batch still incomplete) or unhides and
		// imports the whole delivery.
		destPath := strings.TrimSuffix(hidden, notify.HiddenSuffix)
		sourcePath := filepath.Join(inst.EffectiveIntermediateRoot(), entry.Name())

		result, err := proc.ProcessFile(ctx, sourcePath, destPath)
		s.record(ctx, inst, sourcePath, destPath, result, err)

		if err != nil {
			s.logger.Error("sweep reconciliation failed",
				slog.String("instance", inst.Name),
				slog.String("delivery", deliveryDir),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.logger.Info("swept dangling delivery",
			slog.String("instance", inst.Name),
			slog.String("delivery", deliveryDir),
			slog.String("outcome", string(result.Outcome)),
		)
		swept++
	}
	return swept
}

func (s *Sweeper) record(ctx context.Context, inst config.NamedInstance, sourcePath, destPath string, result *notify.Result, procErr error) {
	if s.store == nil {
		return
	}

	event := &models.Event{
		Instance:   inst.Name,
		Kind:       inst.Kind,
		SourcePath: sourcePath,
		DestPath:   destPath,
	}
	if procErr != nil {
		event.Outcome = "failed"
		event.Detail = procErr.Error()
	} else {
		event.Outcome = string(result.Outcome)
		event.DownloadID = result.DownloadID
	}

	if err := s.store.Record(ctx, event); err != nil {
		s.logger.Warn("failed to record sweep event", slog.String("error", err.Error()))
	}
}

// findHidden returns the first sentinel file under dir, or "".
func findHidden(dir string) string {
	var found string
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(path, notify.HiddenSuffix) {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	return found
}
