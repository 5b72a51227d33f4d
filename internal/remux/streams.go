package remux

import (
	"fmt"
	"strings"

	"github.com/arrhook/arrhook/internal/ffmpeg"
)

// Kind names a fix pipeline.
type Kind string

const (
	// KindContainerFix is the four-pass RARBG container fix.
	KindContainerFix Kind = "container_fix"

	// KindStereoDownmix re-encodes multichannel audio streams to
	// stereo AAC in a single pass.
	KindStereoDownmix Kind = "stereo_downmix"

	// KindRetag rewrites hev1-tagged HEVC streams as hvc1 so Apple
	// players pick them up, in a single pass.
	KindRetag Kind = "hvc1_retag"
)

// DefaultDownmixFormula folds 5.1 audio into stereo, keeping the
// centre channel dominant and mixing in the fronts and surrounds.
const DefaultDownmixFormula = "pan=stereo|c0=c2+0.30*c0+0.30*c4|c1=c2+0.30*c1+0.30*c5"

// Options carries the tuning knobs of the single-pass pipelines.
type Options struct {
	// DownmixFormula overrides the pan filter applied to multichannel
	// audio streams. Empty selects DefaultDownmixFormula.
	DownmixFormula string

	// Faststart moves the moov atom to the head of retagged files.
	Faststart bool
}

func (o Options) formula() string {
	if o.DownmixFormula == "" {
		return DefaultDownmixFormula
	}
	return o.DownmixFormula
}

// streamNeedsDownmix reports whether an audio stream is anything other
// than mono or stereo AAC.
func streamNeedsDownmix(s ffmpeg.ProbeStream) bool {
	return !(strings.EqualFold(s.CodecName, "aac") && s.Channels <= 2)
}

// DownmixNeeded reports whether any audio stream needs the stereo downmix.
func DownmixNeeded(probe *ffmpeg.ProbeResult) bool {
	for _, s := range probe.Streams {
		if s.CodecType == "audio" && streamNeedsDownmix(s) {
			return true
		}
	}
	return false
}

// DownmixPlan builds the single ffmpeg pass that re-encodes every
// multichannel audio stream to stereo AAC, copying video, subtitles,
// and audio streams that are already stereo AAC. It returns nil when
// no stream needs work.
func DownmixPlan(probe *ffmpeg.ProbeResult, fileIn, fileOut string, opts Options) *Plan {
	if !DownmixNeeded(probe) {
		return nil
	}

	args := []string{
		"-y",
		"-i", fileIn,
		"-map", "0:v?",
		"-c:v", "copy",
		"-map", "0:s?",
		"-c:s", "copy",
	}

	audio := 0
	for _, s := range probe.Streams {
		if s.CodecType != "audio" {
			continue
		}
		args = append(args, "-map", fmt.Sprintf("0:a:%d", audio))
		if streamNeedsDownmix(s) {
			args = append(args,
				fmt.Sprintf("-c:a:%d", audio), "aac",
				fmt.Sprintf("-filter:a:%d", audio), opts.formula(),
			)
		} else {
			args = append(args, fmt.Sprintf("-c:a:%d", audio), "copy")
		}
		audio++
	}
	args = append(args, fileOut)

	return &Plan{
		Pass:    1,
		Tool:    "ffmpeg",
		Args:    args,
		FileIn:  fileIn,
		FileOut: fileOut,
		Parser:  ParserFFmpeg,
	}
}

// streamNeedsRetag reports whether a video stream is HEVC carrying the
// hev1 sample entry instead of hvc1.
func streamNeedsRetag(s ffmpeg.ProbeStream) bool {
	return s.CodecType == "video" &&
		affectedCodecs[strings.ToLower(s.CodecName)] &&
		strings.EqualFold(s.CodecTag, "hev1")
}

// RetagNeeded reports whether an mp4 carries an hev1-tagged HEVC stream.
func RetagNeeded(probe *ffmpeg.ProbeResult) bool {
	if !strings.Contains(probe.Format.FormatName, "mp4") {
		return false
	}
	for _, s := range probe.Streams {
		if streamNeedsRetag(s) {
			return true
		}
	}
	return false
}

// RetagPlan builds the single ffmpeg pass that rewrites the container
// with the hvc1 sample entry, stream-copying everything. The tag
// applies per command, so it rides on the first video stream only.
// It returns nil when no stream needs work.
func RetagPlan(probe *ffmpeg.ProbeResult, fileIn, fileOut string, opts Options) *Plan {
	if !RetagNeeded(probe) {
		return nil
	}

	args := []string{"-y", "-i", fileIn}

	video := 0
	for _, s := range probe.Streams {
		if s.CodecType != "video" {
			continue
		}
		args = append(args, "-map", fmt.Sprintf("0:v:%d", video))
		args = append(args, fmt.Sprintf("-c:v:%d", video), "copy")
		if video == 0 {
			args = append(args, "-tag:v", "hvc1")
			if opts.Faststart {
				args = append(args, "-movflags", "+faststart")
			}
		}
		video++
	}

	args = append(args,
		"-map", "0:a?",
		"-c:a", "copy",
		"-map", "0:s?",
		"-c:s", "copy",
		fileOut,
	)

	return &Plan{
		Pass:    1,
		Tool:    "ffmpeg",
		Args:    args,
		FileIn:  fileIn,
		FileOut: fileOut,
		Parser:  ParserFFmpeg,
	}
}
