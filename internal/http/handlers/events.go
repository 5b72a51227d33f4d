package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/arrhook/arrhook/internal/config"
	"github.com/arrhook/arrhook/internal/ffmpeg"
	"github.com/arrhook/arrhook/internal/history"
	"github.com/arrhook/arrhook/internal/models"
	"github.com/arrhook/arrhook/internal/notify"
	"github.com/arrhook/arrhook/internal/remux"
)

// CompletionNotifier is the notifier surface the events handler drives.
type CompletionNotifier interface {
	Name() string
	Instance() config.NamedInstance
	HandleCompleted(ctx context.Context, sourcePath string, destPaths []string) []notify.FileResult
}

// EventsHandler handles completion webhooks and the remux worker protocol.
type EventsHandler struct {
	notifiers []CompletionNotifier
	store     *history.Store
	detector  *remux.Detector
	remuxOpts remux.Options
	logger    *slog.Logger
}

// NewEventsHandler creates a new events handler. The store may be nil to
// skip history recording and the detector may be nil when the fix
// pipeline is not configured.
func NewEventsHandler(notifiers []CompletionNotifier, store *history.Store, detector *remux.Detector, logger *slog.Logger) *EventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsHandler{
		notifiers: notifiers,
		store:     store,
		detector:  detector,
		logger:    logger,
	}
}

// WithRemuxOptions sets the tuning knobs of the single-pass pipelines.
func (h *EventsHandler) WithRemuxOptions(opts remux.Options) *EventsHandler {
	h.remuxOpts = opts
	return h
}

// PostprocessRequest is the body of a completion event.
type PostprocessRequest struct {
	// SourcePath is the task's original source file.
	SourcePath string `json:"source_path" doc:"Original source path of the completed task"`

	// DestPaths are the files the task produced.
	DestPaths []string `json:"dest_paths" minItems:"1" doc:"Destination files produced by the task"`

	// Instances restricts delivery to the named instances. Empty means all.
	Instances []string `json:"instances,omitempty" doc:"Instance names to notify; empty notifies all"`

	// Success reports whether the task succeeded. Failed tasks are not delivered.
	Success bool `json:"success" default:"true" doc:"Whether the task completed successfully"`
}

// FileOutcome is the result of one destination file on one instance.
type FileOutcome struct {
	Path       string `json:"path"`
	Outcome    string `json:"outcome,omitempty"`
	Remaining  int    `json:"remaining,omitempty"`
	DownloadID string `json:"download_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// InstanceOutcome groups the per-file outcomes of one instance.
type InstanceOutcome struct {
	Instance string        `json:"instance"`
	Kind     string        `json:"kind"`
	Files    []FileOutcome `json:"files"`
}

// PostprocessInput is the input for the postprocess endpoint.
type PostprocessInput struct {
	Body PostprocessRequest
}

// PostprocessOutput is the output for the postprocess endpoint.
type PostprocessOutput struct {
	Body struct {
		Delivered bool              `json:"delivered"`
		Results   []InstanceOutcome `json:"results"`
	}
}

// FiletestInput is the input for the filetest endpoint.
type FiletestInput struct {
	Body struct {
		Path string `json:"path" doc:"File to probe"`
	}
}

// FiletestOutput is the output for the filetest endpoint. One probe
// yields the verdict of every pipeline.
type FiletestOutput struct {
	Body struct {
		Path         string `json:"path"`
		Matches      bool   `json:"matches"`
		NeedsDownmix bool   `json:"needs_downmix"`
		NeedsRetag   bool   `json:"needs_retag"`
		Container    string `json:"container,omitempty"`
		VideoCodec   string `json:"video_codec,omitempty"`
		Title        string `json:"title,omitempty"`
	}
}

// WorkerInput is the input for the worker endpoint.
type WorkerInput struct {
	Body remux.Request
}

// WorkerOutput is the output for the worker endpoint. Skipped means
// the file does not need the requested pipeline and no command should
// run.
type WorkerOutput struct {
	Body struct {
		Skipped bool        `json:"skipped,omitempty"`
		Plan    *remux.Plan `json:"plan,omitempty"`
	}
}

// Register registers the event routes with the API.
func (h *EventsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "postProcessEvent",
		Method:      "POST",
		Path:        "/api/v1/events/postprocess",
		Summary:     "Deliver a completion event",
		Description: "Notifies the configured Sonarr and Radarr instances about completed files",
		Tags:        []string{"Events"},
	}, h.Postprocess)

	huma.Register(api, huma.Operation{
		OperationID: "fileTestEvent",
		Method:      "POST",
		Path:        "/api/v1/events/filetest",
		Summary:     "Test a file against the fix pipelines",
		Description: "Probes a file and reports which fix pipelines it needs",
		Tags:        []string{"Events"},
	}, h.Filetest)

	huma.Register(api, huma.Operation{
		OperationID: "workerPlanEvent",
		Method:      "POST",
		Path:        "/api/v1/events/worker",
		Summary:     "Plan the next fix pass",
		Description: "Returns the command for the requested pass of a fix pipeline, or a skip verdict",
		Tags:        []string{"Events"},
	}, h.Worker)
}

// Postprocess delivers a completion event to every selected instance.
func (h *EventsHandler) Postprocess(ctx context.Context, input *PostprocessInput) (*PostprocessOutput, error) {
	out := &PostprocessOutput{}
	if !input.Body.Success {
		h.logger.Info("skipping failed task", slog.String("source", input.Body.SourcePath))
		return out, nil
	}

	selected := toSet(input.Body.Instances)

	for _, notifier := range h.notifiers {
		if len(selected) > 0 && !selected[notifier.Name()] {
			continue
		}

		results := notifier.HandleCompleted(ctx, input.Body.SourcePath, input.Body.DestPaths)

		inst := notifier.Instance()
		outcome := InstanceOutcome{
			Instance: inst.Name,
			Kind:     inst.Kind,
			Files:    make([]FileOutcome, 0, len(results)),
		}
		for _, r := range results {
			outcome.Files = append(outcome.Files, toFileOutcome(r))
			h.record(ctx, inst, input.Body.SourcePath, r)
		}
		out.Body.Results = append(out.Body.Results, outcome)
		out.Body.Delivered = true
	}

	return out, nil
}

// Filetest probes a file and reports each pipeline's verdict.
func (h *EventsHandler) Filetest(ctx context.Context, input *FiletestInput) (*FiletestOutput, error) {
	matches, probe, err := h.checkContainerFix(ctx, input.Body.Path)
	if err != nil {
		return nil, err
	}

	out := &FiletestOutput{}
	out.Body.Path = input.Body.Path
	out.Body.Matches = matches
	out.Body.NeedsDownmix = remux.DownmixNeeded(probe)
	out.Body.NeedsRetag = remux.RetagNeeded(probe)
	out.Body.Container = probe.Format.FormatName
	out.Body.Title = probe.FormatTitle()
	if video := probe.VideoStream(); video != nil {
		out.Body.VideoCodec = video.CodecName
	}
	return out, nil
}

// Worker plans one pass of the requested pipeline for an external
// runner. The container fix re-checks the detection gates on the
// first pass; later passes trust the caller's counter. The single-pass
// pipelines probe on every call.
func (h *EventsHandler) Worker(ctx context.Context, input *WorkerInput) (*WorkerOutput, error) {
	req := input.Body
	out := &WorkerOutput{}

	switch req.Kind {
	case "", remux.KindContainerFix:
		if req.Pass <= remux.PassSplit {
			matches, _, err := h.checkContainerFix(ctx, req.FileIn)
			if err != nil {
				return nil, err
			}
			if !matches {
				h.logger.Debug("file does not match fix criteria",
					slog.String("file", req.FileIn))
				out.Body.Skipped = true
				return out, nil
			}
		}
		plan, err := remux.NextPlan(req)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("planning pass", err)
		}
		out.Body.Plan = plan

	case remux.KindStereoDownmix, remux.KindRetag:
		probe, err := h.probe(ctx, req.FileIn)
		if err != nil {
			return nil, err
		}
		var plan *remux.Plan
		if req.Kind == remux.KindStereoDownmix {
			plan = remux.DownmixPlan(probe, req.FileIn, req.FileOut, h.remuxOpts)
		} else {
			plan = remux.RetagPlan(probe, req.FileIn, req.FileOut, h.remuxOpts)
		}
		if plan == nil {
			h.logger.Debug("file has no streams to process",
				slog.String("file", req.FileIn),
				slog.String("kind", string(req.Kind)))
			out.Body.Skipped = true
			return out, nil
		}
		out.Body.Plan = plan

	default:
		return nil, huma.Error422UnprocessableEntity(
			fmt.Sprintf("unknown pipeline kind %q", req.Kind))
	}

	return out, nil
}

func (h *EventsHandler) checkContainerFix(ctx context.Context, path string) (bool, *ffmpeg.ProbeResult, error) {
	if h.detector == nil {
		return false, nil, huma.Error503ServiceUnavailable("fix pipelines are not configured")
	}
	matches, probe, err := h.detector.Check(ctx, path)
	if err != nil {
		return false, nil, huma.Error422UnprocessableEntity("probing file", err)
	}
	return matches, probe, nil
}

func (h *EventsHandler) probe(ctx context.Context, path string) (*ffmpeg.ProbeResult, error) {
	if h.detector == nil {
		return nil, huma.Error503ServiceUnavailable("fix pipelines are not configured")
	}
	probe, err := h.detector.Probe(ctx, path)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("probing file", err)
	}
	return probe, nil
}

func (h *EventsHandler) record(ctx context.Context, inst config.NamedInstance, sourcePath string, r notify.FileResult) {
	if h.store == nil {
		return
	}

	event := &models.Event{
		Instance:   inst.Name,
		Kind:       inst.Kind,
		SourcePath: sourcePath,
		DestPath:   r.Path,
	}
	if r.Err != nil {
		event.Outcome = "failed"
		event.Detail = r.Err.Error()
	} else {
		event.Outcome = string(r.Result.Outcome)
		event.DownloadID = r.Result.DownloadID
	}

	if err := h.store.Record(ctx, event); err != nil {
		h.logger.Warn("failed to record event", slog.String("error", err.Error()))
	}
}

func toFileOutcome(r notify.FileResult) FileOutcome {
	out := FileOutcome{Path: r.Path}
	if r.Err != nil {
		out.Error = r.Err.Error()
		return out
	}
	out.Outcome = string(r.Result.Outcome)
	out.Remaining = r.Result.Remaining
	out.DownloadID = r.Result.DownloadID
	return out
}

func toSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return set
}
