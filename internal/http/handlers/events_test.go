package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrhook/arrhook/internal/config"
	"github.com/arrhook/arrhook/internal/ffmpeg"
	"github.com/arrhook/arrhook/internal/history"
	"github.com/arrhook/arrhook/internal/notify"
	"github.com/arrhook/arrhook/internal/remux"
)

// mockNotifier implements CompletionNotifier for testing.
type mockNotifier struct {
	inst    config.NamedInstance
	calls   int
	results []notify.FileResult
}

func (m *mockNotifier) Name() string                   { return m.inst.Name }
func (m *mockNotifier) Instance() config.NamedInstance { return m.inst }

func (m *mockNotifier) HandleCompleted(_ context.Context, _ string, destPaths []string) []notify.FileResult {
	m.calls++
	if m.results != nil {
		return m.results
	}
	results := make([]notify.FileResult, 0, len(destPaths))
	for _, p := range destPaths {
		results = append(results, notify.FileResult{
			Path:   p,
			Result: &notify.Result{Outcome: notify.OutcomeImported, DownloadID: "abc"},
		})
	}
	return results
}

func newMockNotifier(name, kind string) *mockNotifier {
	return &mockNotifier{inst: config.NamedInstance{
		Kind:           kind,
		InstanceConfig: config.InstanceConfig{Name: name, Mode: config.ModeImport},
	}}
}

type fakeProber struct {
	probe *ffmpeg.ProbeResult
	err   error
}

func (f *fakeProber) Probe(context.Context, string) (*ffmpeg.ProbeResult, error) {
	return f.probe, f.err
}

func rarbgProbe() *ffmpeg.ProbeResult {
	return &ffmpeg.ProbeResult{
		Format: ffmpeg.ProbeFormat{
			FormatName: "mov,mp4,m4a,3gp,3g2,mj2",
			Tags:       map[string]string{"title": "Some.Movie.2160p.WEB-DL-RARBG"},
		},
		Streams: []ffmpeg.ProbeStream{
			{CodecType: "video", CodecName: "hevc"},
			{CodecType: "audio", CodecName: "aac"},
		},
	}
}

func TestEventsHandler_Postprocess(t *testing.T) {
	tv := newMockNotifier("tv", "sonarr")
	movies := newMockNotifier("movies", "radarr")
	handler := NewEventsHandler([]CompletionNotifier{tv, movies}, nil, nil, nil)

	input := &PostprocessInput{}
	input.Body = PostprocessRequest{
		SourcePath: "/cache/Some.Show.S01E01.mkv",
		DestPaths:  []string{"/media/tv/Some.Show.S01E01.mkv"},
		Success:    true,
	}

	output, err := handler.Postprocess(context.Background(), input)
	require.NoError(t, err)

	assert.True(t, output.Body.Delivered)
	require.Len(t, output.Body.Results, 2)
	assert.Equal(t, 1, tv.calls)
	assert.Equal(t, 1, movies.calls)

	first := output.Body.Results[0]
	assert.Equal(t, "tv", first.Instance)
	assert.Equal(t, "sonarr", first.Kind)
	require.Len(t, first.Files, 1)
	assert.Equal(t, "imported", first.Files[0].Outcome)
	assert.Equal(t, "abc", first.Files[0].DownloadID)
}

func TestEventsHandler_Postprocess_InstanceFilter(t *testing.T) {
	tv := newMockNotifier("tv", "sonarr")
	movies := newMockNotifier("movies", "radarr")
	handler := NewEventsHandler([]CompletionNotifier{tv, movies}, nil, nil, nil)

	input := &PostprocessInput{}
	input.Body = PostprocessRequest{
		DestPaths: []string{"/media/movies/Some.Movie.mkv"},
		Instances: []string{"movies"},
		Success:   true,
	}

	output, err := handler.Postprocess(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, output.Body.Results, 1)
	assert.Equal(t, "movies", output.Body.Results[0].Instance)
	assert.Equal(t, 0, tv.calls)
	assert.Equal(t, 1, movies.calls)
}

func TestEventsHandler_Postprocess_FailedTaskNotDelivered(t *testing.T) {
	tv := newMockNotifier("tv", "sonarr")
	handler := NewEventsHandler([]CompletionNotifier{tv}, nil, nil, nil)

	input := &PostprocessInput{}
	input.Body = PostprocessRequest{
		DestPaths: []string{"/media/tv/a.mkv"},
		Success:   false,
	}

	output, err := handler.Postprocess(context.Background(), input)
	require.NoError(t, err)

	assert.False(t, output.Body.Delivered)
	assert.Equal(t, 0, tv.calls)
}

func TestEventsHandler_Postprocess_RecordsHistory(t *testing.T) {
	store := history.NewStore(newTestDB(t))
	tv := newMockNotifier("tv", "sonarr")
	handler := NewEventsHandler([]CompletionNotifier{tv}, store, nil, nil)

	input := &PostprocessInput{}
	input.Body = PostprocessRequest{
		SourcePath: "/cache/a.mkv",
		DestPaths:  []string{"/media/tv/a.mkv"},
		Success:    true,
	}

	_, err := handler.Postprocess(context.Background(), input)
	require.NoError(t, err)

	events, err := store.Recent(context.Background(), history.Filter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "tv", events[0].Instance)
	assert.Equal(t, "imported", events[0].Outcome)
	assert.Equal(t, "/media/tv/a.mkv", events[0].DestPath)
}

func TestEventsHandler_Filetest(t *testing.T) {
	detector := remux.NewDetector(&fakeProber{probe: rarbgProbe()})
	handler := NewEventsHandler(nil, nil, detector, nil)

	input := &FiletestInput{}
	input.Body.Path = "/media/movies/Some.Movie.mp4"

	output, err := handler.Filetest(context.Background(), input)
	require.NoError(t, err)

	assert.True(t, output.Body.Matches)
	assert.Equal(t, "hevc", output.Body.VideoCodec)
	assert.Contains(t, output.Body.Title, "RARBG")
	assert.False(t, output.Body.NeedsDownmix)
	assert.False(t, output.Body.NeedsRetag)
}

func TestEventsHandler_Filetest_ReportsAllVerdicts(t *testing.T) {
	probe := rarbgProbe()
	probe.Format.Tags["title"] = "clean release"
	probe.Streams[0].CodecTag = "hev1"
	probe.Streams[1].CodecName = "ac3"
	probe.Streams[1].Channels = 6

	detector := remux.NewDetector(&fakeProber{probe: probe})
	handler := NewEventsHandler(nil, nil, detector, nil)

	input := &FiletestInput{}
	input.Body.Path = "/media/movies/Some.Movie.mp4"

	output, err := handler.Filetest(context.Background(), input)
	require.NoError(t, err)

	assert.False(t, output.Body.Matches)
	assert.True(t, output.Body.NeedsDownmix)
	assert.True(t, output.Body.NeedsRetag)
}

func TestEventsHandler_Filetest_NoDetector(t *testing.T) {
	handler := NewEventsHandler(nil, nil, nil, nil)

	input := &FiletestInput{}
	input.Body.Path = "/media/movies/Some.Movie.mp4"

	_, err := handler.Filetest(context.Background(), input)
	require.Error(t, err)
}

func TestEventsHandler_Worker(t *testing.T) {
	detector := remux.NewDetector(&fakeProber{probe: rarbgProbe()})
	handler := NewEventsHandler(nil, nil, detector, nil)

	input := &WorkerInput{}
	input.Body = remux.Request{
		FileIn:  "/media/in.mp4",
		FileOut: "/cache/out.mp4",
	}

	output, err := handler.Worker(context.Background(), input)
	require.NoError(t, err)

	assert.False(t, output.Body.Skipped)
	require.NotNil(t, output.Body.Plan)
	assert.Equal(t, remux.PassSplit, output.Body.Plan.Pass)
	assert.Equal(t, "ffmpeg", output.Body.Plan.Tool)
	assert.True(t, output.Body.Plan.Repeat)
	assert.Equal(t, remux.PassFixVideo, output.Body.Plan.NextPass)
}

func TestEventsHandler_Worker_FirstPassRechecksDetection(t *testing.T) {
	probe := rarbgProbe()
	probe.Format.Tags["title"] = "clean release"
	detector := remux.NewDetector(&fakeProber{probe: probe})
	handler := NewEventsHandler(nil, nil, detector, nil)

	input := &WorkerInput{}
	input.Body = remux.Request{
		FileIn:  "/media/clean.mp4",
		FileOut: "/cache/clean.mp4",
		Pass:    remux.PassSplit,
	}

	output, err := handler.Worker(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, output.Body.Skipped, "non-matching file must not get a command")
	assert.Nil(t, output.Body.Plan)

	t.Run("later passes trust the counter", func(t *testing.T) {
		input := &WorkerInput{}
		input.Body = remux.Request{
			FileIn:  "/cache/clean.rarbg_video.mkv",
			FileOut: "/cache/clean.mp4",
			Pass:    remux.PassFixVideo,
		}

		output, err := handler.Worker(context.Background(), input)
		require.NoError(t, err)
		assert.False(t, output.Body.Skipped)
		require.NotNil(t, output.Body.Plan)
		assert.Equal(t, "mkvmerge", output.Body.Plan.Tool)
	})
}

func TestEventsHandler_Worker_FirstPassWithoutDetector(t *testing.T) {
	handler := NewEventsHandler(nil, nil, nil, nil)

	input := &WorkerInput{}
	input.Body = remux.Request{FileIn: "in.mp4", FileOut: "out.mp4"}

	_, err := handler.Worker(context.Background(), input)
	require.Error(t, err)
}

func TestEventsHandler_Worker_InvalidPass(t *testing.T) {
	handler := NewEventsHandler(nil, nil, nil, nil)

	input := &WorkerInput{}
	input.Body = remux.Request{FileIn: "in.mp4", FileOut: "out.mp4", Pass: 9}

	_, err := handler.Worker(context.Background(), input)
	require.Error(t, err)
}

func TestEventsHandler_Worker_Downmix(t *testing.T) {
	probe := rarbgProbe()
	probe.Streams[1].CodecName = "ac3"
	probe.Streams[1].Channels = 6
	detector := remux.NewDetector(&fakeProber{probe: probe})
	handler := NewEventsHandler(nil, nil, detector, nil)

	input := &WorkerInput{}
	input.Body = remux.Request{
		Kind:    remux.KindStereoDownmix,
		FileIn:  "/media/in.mkv",
		FileOut: "/cache/out.mkv",
	}

	output, err := handler.Worker(context.Background(), input)
	require.NoError(t, err)

	require.NotNil(t, output.Body.Plan)
	assert.Equal(t, "ffmpeg", output.Body.Plan.Tool)
	assert.False(t, output.Body.Plan.Repeat)
	assert.Contains(t, output.Body.Plan.Args, remux.DefaultDownmixFormula)
}

func TestEventsHandler_Worker_DownmixSkipsStereoAAC(t *testing.T) {
	detector := remux.NewDetector(&fakeProber{probe: rarbgProbe()})
	handler := NewEventsHandler(nil, nil, detector, nil)

	input := &WorkerInput{}
	input.Body = remux.Request{
		Kind:    remux.KindStereoDownmix,
		FileIn:  "/media/in.mkv",
		FileOut: "/cache/out.mkv",
	}

	output, err := handler.Worker(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, output.Body.Skipped)
	assert.Nil(t, output.Body.Plan)
}

func TestEventsHandler_Worker_Retag(t *testing.T) {
	probe := rarbgProbe()
	probe.Streams[0].CodecTag = "hev1"
	detector := remux.NewDetector(&fakeProber{probe: probe})
	handler := NewEventsHandler(nil, nil, detector, nil).
		WithRemuxOptions(remux.Options{Faststart: true})

	input := &WorkerInput{}
	input.Body = remux.Request{
		Kind:    remux.KindRetag,
		FileIn:  "/media/in.mp4",
		FileOut: "/cache/out.mp4",
	}

	output, err := handler.Worker(context.Background(), input)
	require.NoError(t, err)

	require.NotNil(t, output.Body.Plan)
	assert.Contains(t, output.Body.Plan.Args, "hvc1")
	assert.Contains(t, output.Body.Plan.Args, "+faststart")
}

func TestEventsHandler_Worker_RetagSkipsCleanFile(t *testing.T) {
	detector := remux.NewDetector(&fakeProber{probe: rarbgProbe()})
	handler := NewEventsHandler(nil, nil, detector, nil)

	input := &WorkerInput{}
	input.Body = remux.Request{
		Kind:    remux.KindRetag,
		FileIn:  "/media/in.mp4",
		FileOut: "/cache/out.mp4",
	}

	output, err := handler.Worker(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, output.Body.Skipped)
}

func TestEventsHandler_Worker_UnknownKind(t *testing.T) {
	detector := remux.NewDetector(&fakeProber{probe: rarbgProbe()})
	handler := NewEventsHandler(nil, nil, detector, nil)

	input := &WorkerInput{}
	input.Body = remux.Request{Kind: "transcode", FileIn: "in.mp4", FileOut: "out.mp4"}

	_, err := handler.Worker(context.Background(), input)
	require.Error(t, err)
}
