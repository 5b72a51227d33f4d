package remux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrhook/arrhook/internal/ffmpeg"
)

func surroundProbe() *ffmpeg.ProbeResult {
	return &ffmpeg.ProbeResult{
		Format: ffmpeg.ProbeFormat{FormatName: "matroska,webm"},
		Streams: []ffmpeg.ProbeStream{
			{Index: 0, CodecType: "video", CodecName: "h264"},
			{Index: 1, CodecType: "audio", CodecName: "ac3", Channels: 6},
			{Index: 2, CodecType: "audio", CodecName: "aac", Channels: 2},
		},
	}
}

func hev1Probe() *ffmpeg.ProbeResult {
	return &ffmpeg.ProbeResult{
		Format: ffmpeg.ProbeFormat{FormatName: "mov,mp4,m4a,3gp,3g2,mj2"},
		Streams: []ffmpeg.ProbeStream{
			{Index: 0, CodecType: "video", CodecName: "hevc", CodecTag: "hev1"},
			{Index: 1, CodecType: "audio", CodecName: "aac", Channels: 2},
		},
	}
}

func TestDownmixNeeded(t *testing.T) {
	assert.True(t, DownmixNeeded(surroundProbe()))

	t.Run("stereo aac passes", func(t *testing.T) {
		probe := surroundProbe()
		probe.Streams = probe.Streams[2:]
		assert.False(t, DownmixNeeded(probe))
	})

	t.Run("multichannel aac still needs work", func(t *testing.T) {
		probe := surroundProbe()
		probe.Streams[1].CodecName = "aac"
		assert.True(t, DownmixNeeded(probe))
	})

	t.Run("stereo non-aac still needs work", func(t *testing.T) {
		probe := surroundProbe()
		probe.Streams[1].Channels = 2
		assert.True(t, DownmixNeeded(probe))
	})

	t.Run("no audio streams", func(t *testing.T) {
		probe := surroundProbe()
		probe.Streams = probe.Streams[:1]
		assert.False(t, DownmixNeeded(probe))
	})
}

func TestDownmixPlan(t *testing.T) {
	plan := DownmixPlan(surroundProbe(), "/library/in.mkv", "/cache/out.mkv", Options{})
	require.NotNil(t, plan)

	assert.Equal(t, "ffmpeg", plan.Tool)
	assert.Equal(t, ParserFFmpeg, plan.Parser)
	assert.False(t, plan.Repeat)
	assert.Equal(t, []string{
		"-y",
		"-i", "/library/in.mkv",
		"-map", "0:v?",
		"-c:v", "copy",
		"-map", "0:s?",
		"-c:s", "copy",
		"-map", "0:a:0",
		"-c:a:0", "aac",
		"-filter:a:0", DefaultDownmixFormula,
		"-map", "0:a:1",
		"-c:a:1", "copy",
		"/cache/out.mkv",
	}, plan.Args)
}

func TestDownmixPlan_CustomFormula(t *testing.T) {
	opts := Options{DownmixFormula: "pan=stereo|c0=c0|c1=c1"}
	plan := DownmixPlan(surroundProbe(), "in.mkv", "out.mkv", opts)
	require.NotNil(t, plan)
	assert.Contains(t, plan.Args, "pan=stereo|c0=c0|c1=c1")
	assert.NotContains(t, plan.Args, DefaultDownmixFormula)
}

func TestDownmixPlan_NothingToDo(t *testing.T) {
	probe := surroundProbe()
	probe.Streams = append(probe.Streams[:1], probe.Streams[2])
	assert.Nil(t, DownmixPlan(probe, "in.mkv", "out.mkv", Options{}))
}

func TestRetagNeeded(t *testing.T) {
	assert.True(t, RetagNeeded(hev1Probe()))

	t.Run("already hvc1", func(t *testing.T) {
		probe := hev1Probe()
		probe.Streams[0].CodecTag = "hvc1"
		assert.False(t, RetagNeeded(probe))
	})

	t.Run("not mp4", func(t *testing.T) {
		probe := hev1Probe()
		probe.Format.FormatName = "matroska,webm"
		assert.False(t, RetagNeeded(probe))
	})

	t.Run("not hevc", func(t *testing.T) {
		probe := hev1Probe()
		probe.Streams[0].CodecName = "h264"
		assert.False(t, RetagNeeded(probe))
	})
}

func TestRetagPlan(t *testing.T) {
	plan := RetagPlan(hev1Probe(), "/library/in.mp4", "/cache/out.mp4", Options{Faststart: true})
	require.NotNil(t, plan)

	assert.Equal(t, "ffmpeg", plan.Tool)
	assert.False(t, plan.Repeat)
	assert.Equal(t, []string{
		"-y",
		"-i", "/library/in.mp4",
		"-map", "0:v:0",
		"-c:v:0", "copy",
		"-tag:v", "hvc1",
		"-movflags", "+faststart",
		"-map", "0:a?",
		"-c:a", "copy",
		"-map", "0:s?",
		"-c:s", "copy",
		"/cache/out.mp4",
	}, plan.Args)
}

func TestRetagPlan_NoFaststart(t *testing.T) {
	plan := RetagPlan(hev1Probe(), "in.mp4", "out.mp4", Options{})
	require.NotNil(t, plan)
	assert.NotContains(t, plan.Args, "-movflags")
}

func TestRetagPlan_NothingToDo(t *testing.T) {
	probe := hev1Probe()
	probe.Streams[0].CodecTag = "hvc1"
	assert.Nil(t, RetagPlan(probe, "in.mp4", "out.mp4", Options{}))
}
