package remux

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrhook/arrhook/internal/ffmpeg"
)

func rarbgProbe() *ffmpeg.ProbeResult {
	return &ffmpeg.ProbeResult{
		Format: ffmpeg.ProbeFormat{
			FormatName: "mov,mp4,m4a,3gp,3g2,mj2",
			Duration:   "3600.0",
			Tags:       map[string]string{"title": "Some.Movie.2024.1080p.x265-RARBG"},
		},
		Streams: []ffmpeg.ProbeStream{
			{Index: 0, CodecType: "video", CodecName: "hevc"},
			{Index: 1, CodecType: "audio", CodecName: "aac"},
		},
	}
}

func TestMatches(t *testing.T) {
	assert.True(t, Matches(rarbgProbe()))

	t.Run("wrong container", func(t *testing.T) {
		probe := rarbgProbe()
		probe.Format.FormatName = "matroska,webm"
		assert.False(t, Matches(probe))
	})

	t.Run("wrong codec", func(t *testing.T) {
		probe := rarbgProbe()
		probe.Streams[0].CodecName = "h264"
		assert.False(t, Matches(probe))
	})

	t.Run("h265 alias matches", func(t *testing.T) {
		probe := rarbgProbe()
		probe.Streams[0].CodecName = "H265"
		assert.True(t, Matches(probe))
	})

	t.Run("no rarbg title", func(t *testing.T) {
		probe := rarbgProbe()
		probe.Format.Tags["title"] = "Some.Movie.2024"
		assert.False(t, Matches(probe))
	})

	t.Run("no title tag", func(t *testing.T) {
		probe := rarbgProbe()
		probe.Format.Tags = nil
		assert.False(t, Matches(probe))
	})

	t.Run("no video stream", func(t *testing.T) {
		probe := rarbgProbe()
		probe.Streams = probe.Streams[1:]
		assert.False(t, Matches(probe))
	})
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "/cache/Some.Movie.2024",
		BaseName("/cache/Some.Movie.2024-WORKING-1.mp4"))
	assert.Equal(t, "/cache/Some.Movie.2024",
		BaseName("/cache/Some.Movie.2024.mp4"))
}

func TestNextPlan_FullPipeline(t *testing.T) {
	fileOut := "/cache/Some.Movie-WORKING-1.mp4"
	base := "/cache/Some.Movie"

	req := Request{FileIn: "/library/Some.Movie.mp4", FileOut: fileOut, Pass: PassSplit}

	split, err := NextPlan(req)
	require.NoError(t, err)
	assert.Equal(t, "ffmpeg", split.Tool)
	assert.Equal(t, []string{
		"-y",
		"-i", "/library/Some.Movie.mp4",
		"-map", "0:v",
		"-map", "0:s?",
		"-c:v", "copy",
		base + ".rarbg_video.mkv",
		"-map", "0:a",
		"-c:a", "copy",
		base + ".rarbg_audio.mkv",
	}, split.Args)
	assert.True(t, split.Repeat)
	assert.Equal(t, PassFixVideo, split.NextPass)
	assert.Equal(t, ParserFFmpeg, split.Parser)

	fixVideo, err := NextPlan(Request{FileIn: split.FileOut, FileOut: fileOut, Pass: split.NextPass})
	require.NoError(t, err)
	assert.Equal(t, "mkvmerge", fixVideo.Tool)
	assert.Equal(t, []string{
		"-A", "-S",
		"-o", base + ".rarbg_video_fixed.mkv",
		base + ".rarbg_video.mkv",
	}, fixVideo.Args)
	assert.Equal(t, ParserMKVMerge, fixVideo.Parser)

	fixAudio, err := NextPlan(Request{FileIn: fixVideo.FileOut, FileOut: fileOut, Pass: fixVideo.NextPass})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"-D",
		"-o", base + ".rarbg_audio_fixed.mkv",
		base + ".rarbg_audio.mkv",
	}, fixAudio.Args)

	recombine, err := NextPlan(Request{FileIn: fixAudio.FileOut, FileOut: fileOut, Pass: fixAudio.NextPass})
	require.NoError(t, err)
	assert.Equal(t, "ffmpeg", recombine.Tool)
	assert.Equal(t, []string{
		"-y",
		"-i", base + ".rarbg_video_fixed.mkv",
		"-i", base + ".rarbg_audio_fixed.mkv",
		"-c", "copy",
		"-map", "0",
		"-map", "1",
		base + ".rarbg_fixed.mp4",
	}, recombine.Args)
	assert.False(t, recombine.Repeat)
	assert.Equal(t, base+".rarbg_fixed.mp4", recombine.FileOut)
}

func TestNextPlan_ZeroPassIsFirst(t *testing.T) {
	plan, err := NextPlan(Request{FileIn: "in.mp4", FileOut: "out.mp4"})
	require.NoError(t, err)
	assert.Equal(t, PassSplit, plan.Pass)
}

func TestNextPlan_InvalidPass(t *testing.T) {
	_, err := NextPlan(Request{FileIn: "in.mp4", FileOut: "out.mp4", Pass: 5})
	assert.Error(t, err)
}

func TestFFmpegProgress(t *testing.T) {
	p := &FFmpegProgress{Total: time.Hour}

	pct, ok := p.Parse("frame= 1000 fps=200 time=00:30:00.00 bitrate=1000k speed=8x")
	require.True(t, ok)
	assert.InDelta(t, 50.0, pct, 0.01)

	_, ok = p.Parse("Stream mapping:")
	assert.False(t, ok)

	pct, ok = p.Parse("time=02:00:00.00")
	require.True(t, ok)
	assert.Equal(t, 100.0, pct, "elapsed past duration clamps")
}

func TestFFmpegProgress_NoDuration(t *testing.T) {
	p := &FFmpegProgress{}
	_, ok := p.Parse("time=00:30:00.00")
	assert.False(t, ok)
}

func TestMKVMergeProgress(t *testing.T) {
	p := &MKVMergeProgress{}

	pct, ok := p.Parse("Progress: 42%")
	require.True(t, ok)
	assert.Equal(t, 42.0, pct)

	// Phase switches can report lower values; progress never regresses.
	pct, ok = p.Parse("Progress: 10%")
	require.True(t, ok)
	assert.Equal(t, 42.0, pct)

	_, ok = p.Parse("The file is being fixed.")
	assert.False(t, ok)
}

type fakeProber struct {
	probe *ffmpeg.ProbeResult
	err   error
}

func (f *fakeProber) Probe(context.Context, string) (*ffmpeg.ProbeResult, error) {
	return f.probe, f.err
}

func TestRunner_SkipsNonMatchingFile(t *testing.T) {
	probe := rarbgProbe()
	probe.Format.Tags["title"] = "clean release"

	r := NewRunner(nil, &fakeProber{probe: probe}, nil)
	r.execute = func(context.Context, string, []string, ProgressParser, func(float64)) error {
		t.Error("no command should run for a non-matching file")
		return nil
	}

	out, err := r.Run(context.Background(), "/library/in.mp4", "/cache/out.mp4", nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRunner_DrivesAllFourPasses(t *testing.T) {
	r := NewRunner(nil, &fakeProber{probe: rarbgProbe()}, nil)

	var tools []string
	var maxPass int
	r.execute = func(_ context.Context, tool string, args []string, parser ProgressParser, report func(float64)) error {
		tools = append(tools, tool)
		// Feed the parser a line matching its tool to exercise reporting.
		if _, ok := parser.(*MKVMergeProgress); ok {
			if pct, found := parser.Parse("Progress: 100%"); found {
				report(pct)
			}
		}
		return nil
	}

	out, err := r.Run(context.Background(), "/library/Some.Movie.mp4", "/cache/Some.Movie-WORKING-1.mp4",
		func(pass int, _ float64) {
			if pass > maxPass {
				maxPass = pass
			}
		})
	require.NoError(t, err)

	assert.Equal(t, []string{"ffmpeg", "mkvmerge", "mkvmerge", "ffmpeg"}, tools)
	assert.Equal(t, "/cache/Some.Movie.rarbg_fixed.mp4", out)
	assert.Equal(t, PassFixAudio, maxPass, "progress reported for mkvmerge passes")
}

func TestRunner_PassFailureStopsPipeline(t *testing.T) {
	r := NewRunner(nil, &fakeProber{probe: rarbgProbe()}, nil)

	calls := 0
	r.execute = func(context.Context, string, []string, ProgressParser, func(float64)) error {
		calls++
		if calls == 2 {
			return assert.AnError
		}
		return nil
	}

	_, err := r.Run(context.Background(), "/library/in.mp4", "/cache/in-WORKING-1.mp4", nil)
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Contains(t, err.Error(), "pass 2")
}

func TestIntermediates(t *testing.T) {
	files := Intermediates("/cache/Some.Movie-WORKING-1.mp4")
	assert.Equal(t, []string{
		"/cache/Some.Movie.rarbg_video.mkv",
		"/cache/Some.Movie.rarbg_audio.mkv",
		"/cache/Some.Movie.rarbg_video_fixed.mkv",
		"/cache/Some.Movie.rarbg_audio_fixed.mkv",
	}, files)
}
