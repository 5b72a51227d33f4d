package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/arrhook/arrhook/internal/history"
)

// HistoryHandler serves the recorded delivery outcomes.
type HistoryHandler struct {
	store *history.Store
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(store *history.Store) *HistoryHandler {
	return &HistoryHandler{store: store}
}

// EventView is the API shape of one recorded event.
type EventView struct {
	ID         string `json:"id"`
	Timestamp  string `json:"timestamp"`
	Instance   string `json:"instance"`
	Kind       string `json:"kind"`
	SourcePath string `json:"source_path,omitempty"`
	DestPath   string `json:"dest_path,omitempty"`
	DownloadID string `json:"download_id,omitempty"`
	Outcome    string `json:"outcome"`
	Detail     string `json:"detail,omitempty"`
}

// ListHistoryInput is the input for the history list endpoint.
type ListHistoryInput struct {
	Instance string `query:"instance" doc:"Filter by instance name"`
	Outcome  string `query:"outcome" doc:"Filter by outcome"`
	Limit    int    `query:"limit" minimum:"0" maximum:"500" doc:"Maximum events to return"`
}

// ListHistoryOutput is the output for the history list endpoint.
type ListHistoryOutput struct {
	Body struct {
		Events []EventView `json:"events"`
	}
}

// HistoryStatsInput is the input for the history stats endpoint.
type HistoryStatsInput struct{}

// HistoryStatsOutput is the output for the history stats endpoint.
type HistoryStatsOutput struct {
	Body struct {
		Outcomes map[string]int64 `json:"outcomes"`
	}
}

// Register registers the history routes with the API.
func (h *HistoryHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listHistory",
		Method:      "GET",
		Path:        "/api/v1/history",
		Summary:     "List recent delivery outcomes",
		Tags:        []string{"History"},
	}, h.ListHistory)

	huma.Register(api, huma.Operation{
		OperationID: "getHistoryStats",
		Method:      "GET",
		Path:        "/api/v1/history/stats",
		Summary:     "Count outcomes by kind",
		Tags:        []string{"History"},
	}, h.GetStats)
}

// ListHistory returns recent events, newest first.
func (h *HistoryHandler) ListHistory(ctx context.Context, input *ListHistoryInput) (*ListHistoryOutput, error) {
	events, err := h.store.Recent(ctx, history.Filter{
		Instance: input.Instance,
		Outcome:  input.Outcome,
		Limit:    input.Limit,
	})
	if err != nil {
		return nil, huma.Error500InternalServerError("listing history", err)
	}

	out := &ListHistoryOutput{}
	out.Body.Events = make([]EventView, 0, len(events))
	for _, e := range events {
		out.Body.Events = append(out.Body.Events, EventView{
			ID:         e.ID.String(),
			Timestamp:  e.CreatedAt.UTC().Format(time.RFC3339),
			Instance:   e.Instance,
			Kind:       e.Kind,
			SourcePath: e.SourcePath,
			DestPath:   e.DestPath,
			DownloadID: e.DownloadID,
			Outcome:    e.Outcome,
			Detail:     e.Detail,
		})
	}
	return out, nil
}

// GetStats returns how many events exist per outcome.
func (h *HistoryHandler) GetStats(ctx context.Context, input *HistoryStatsInput) (*HistoryStatsOutput, error) {
	counts, err := h.store.CountByOutcome(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("counting history", err)
	}

	out := &HistoryStatsOutput{}
	out.Body.Outcomes = counts
	return out, nil
}
