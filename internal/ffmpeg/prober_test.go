package ffmpeg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rarbgProbeJSON = `{
  "streams": [
    {"index": 0, "codec_name": "hevc", "codec_type": "video", "width": 1920, "height": 1080},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "channels": 6},
    {"index": 2, "codec_name": "mov_text", "codec_type": "subtitle"}
  ],
  "format": {
    "filename": "Some.Movie.2024.1080p.mp4",
    "nb_streams": 3,
    "format_name": "mov,mp4,m4a,3gp,3g2,mj2",
    "duration": "5400.123000",
    "tags": {"title": "Some.Movie.2024.1080p-RARBG"}
  }
}`

func TestParseProbeOutput(t *testing.T) {
	result, err := ParseProbeOutput([]byte(rarbgProbeJSON))
	require.NoError(t, err)

	assert.Equal(t, "mov,mp4,m4a,3gp,3g2,mj2", result.Format.FormatName)
	assert.Equal(t, 3, result.Format.NumStreams)
	assert.Equal(t, "Some.Movie.2024.1080p-RARBG", result.FormatTitle())

	video := result.VideoStream()
	require.NotNil(t, video)
	assert.Equal(t, "hevc", video.CodecName)
	assert.Equal(t, 1920, video.Width)
}

func TestParseProbeOutput_Invalid(t *testing.T) {
	_, err := ParseProbeOutput([]byte("not json"))
	assert.Error(t, err)
}

func TestProbeResult_Duration(t *testing.T) {
	result, err := ParseProbeOutput([]byte(rarbgProbeJSON))
	require.NoError(t, err)
	assert.InDelta(t, (90*time.Minute + 123*time.Millisecond).Seconds(), result.Duration().Seconds(), 0.01)

	empty := &ProbeResult{}
	assert.Equal(t, time.Duration(0), empty.Duration())
}

func TestProbeResult_NoVideoStream(t *testing.T) {
	result := &ProbeResult{Streams: []ProbeStream{{CodecType: "audio"}}}
	assert.Nil(t, result.VideoStream())
}
