package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/arrhook/arrhook/internal/arr"
	"github.com/arrhook/arrhook/internal/config"
	"github.com/arrhook/arrhook/internal/httpclient"
	"github.com/arrhook/arrhook/internal/observability"
)

// Notifier handles completion events for one configured instance,
// dispatching to refresh or import mode per its configuration.
type Notifier struct {
	instance   config.NamedInstance
	backend    Backend
	reconciler *Reconciler
	logger     *slog.Logger
}

// FileResult pairs one delivered path with its reconciliation result.
type FileResult struct {
	Path   string
	Result *Result
	Err    error
}

// NewNotifier builds a notifier for the given instance over a shared
// HTTP client.
func NewNotifier(inst config.NamedInstance, hc *httpclient.Client, logger *slog.Logger) (*Notifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = observability.WithInstance(logger, inst.Name)

	client := arr.NewClient(inst.URL, inst.APIKey, hc, logger)

	var backend Backend
	switch inst.Kind {
	case "sonarr":
		backend = NewSonarrBackend(arr.NewSonarr(client), logger)
	case "radarr":
		backend = NewRadarrBackend(arr.NewRadarr(client), logger)
	default:
		return nil, fmt.Errorf("unknown instance kind %q", inst.Kind)
	}

	return newNotifierWithBackend(inst, backend, logger), nil
}

func newNotifierWithBackend(inst config.NamedInstance, backend Backend, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		instance:   inst,
		backend:    backend,
		reconciler: NewReconciler(backend, logger),
		logger:     logger,
	}
}

// Instance returns the configuration this notifier serves.
func (n *Notifier) Instance() config.NamedInstance { return n.instance }

// Name returns the configured instance name.
func (n *Notifier) Name() string { return n.instance.Name }

// HandleCompleted processes every destination file of a completed
// task. Failures on one file do not stop the others.
func (n *Notifier) HandleCompleted(ctx context.Context, sourcePath string, destPaths []string) []FileResult {
	results := make([]FileResult, 0, len(destPaths))
	for _, dest := range destPaths {
		result, err := n.ProcessFile(ctx, sourcePath, dest)
		if err != nil {
			n.logger.Error("failed to process delivery",
				slog.String("dest", dest),
				slog.String("error", err.Error()),
			)
		}
		results = append(results, FileResult{Path: dest, Result: result, Err: err})
	}
	return results
}

// ProcessFile handles one delivered file according to the instance mode.
func (n *Notifier) ProcessFile(ctx context.Context, sourcePath, destPath string) (*Result, error) {
	switch n.instance.Mode {
	case config.ModeRefresh:
		basename := filepath.Base(destPath)
		if err := n.backend.Refresh(ctx, basename, n.instance.RenameFiles); err != nil {
			return nil, err
		}
		return &Result{Outcome: OutcomeRefreshed, DestBase: basename}, nil

	case config.ModeImport:
		// The size gate only applies to direct imports. Delayed
		// deliveries are counted, not sized.
		if !n.instance.DelayImport && n.instance.MinimumFileSize > 0 {
			under, err := underMinimumSize(destPath, n.instance.MinimumFileSize.Bytes())
			if err != nil {
				return nil, err
			}
			if under {
				n.logger.Info("ignoring file under minimum size",
					slog.String("dest", destPath),
					slog.String("minimum", n.instance.MinimumFileSize.String()),
				)
				return &Result{Outcome: OutcomeSkippedSmall, DestBase: filepath.Base(destPath)}, nil
			}
		}

		return n.reconciler.Process(ctx, Delivery{
			SourcePath:       sourcePath,
			DestPath:         destPath,
			IntermediateRoot: n.instance.EffectiveIntermediateRoot(),
			ImportRoot:       n.instance.ImportRoot,
			SourcesRemoved:   n.instance.SourcesRemoved,
		})

	default:
		return nil, fmt.Errorf("unknown mode %q", n.instance.Mode)
	}
}

func underMinimumSize(path string, minimum int64) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("sizing %s: %w", path, err)
	}
	return info.Size() <= minimum, nil
}
