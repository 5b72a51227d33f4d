// Package remux implements detection and repair of RARBG-style mp4
// releases whose HEVC streams confuse downstream players. The fix is a
// four-pass pipeline: split the container into video and audio mkvs,
// rewrite each with mkvmerge, then recombine into a clean mp4.
package remux

import (
	"context"
	"strings"

	"github.com/arrhook/arrhook/internal/ffmpeg"
)

// Prober is the probe surface the detector needs.
type Prober interface {
	Probe(ctx context.Context, path string) (*ffmpeg.ProbeResult, error)
}

// Codecs whose streams carry the malformed signature.
var affectedCodecs = map[string]bool{
	"hevc": true,
	"h265": true,
}

// Detector decides whether a file carries the malformed container
// signature: an mp4 with an HEVC video stream and a RARBG release
// title tag.
type Detector struct {
	prober Prober
}

// NewDetector creates a detector over the given prober.
func NewDetector(prober Prober) *Detector {
	return &Detector{prober: prober}
}

// Check probes path and reports whether it needs fixing.
func (d *Detector) Check(ctx context.Context, path string) (bool, *ffmpeg.ProbeResult, error) {
	probe, err := d.prober.Probe(ctx, path)
	if err != nil {
		return false, nil, err
	}
	return Matches(probe), probe, nil
}

// Probe runs the underlying prober without applying any match rules.
// The single-pass pipelines use it to inspect streams directly.
func (d *Detector) Probe(ctx context.Context, path string) (*ffmpeg.ProbeResult, error) {
	return d.prober.Probe(ctx, path)
}

// Matches applies the detection rules to an existing probe result.
func Matches(probe *ffmpeg.ProbeResult) bool {
	if !strings.Contains(probe.Format.FormatName, "mp4") {
		return false
	}

	video := probe.VideoStream()
	if video == nil || !affectedCodecs[strings.ToLower(video.CodecName)] {
		return false
	}

	return strings.Contains(strings.ToLower(probe.FormatTitle()), "rarbg")
}
