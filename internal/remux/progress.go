package remux

import (
	"regexp"
	"strconv"
	"time"
)

// ProgressParser extracts a completion percentage from one line of
// tool output. Lines without progress information return ok=false.
type ProgressParser interface {
	Parse(line string) (percent float64, ok bool)
}

// ffmpeg reports elapsed media time on stderr status lines.
var ffmpegTimeRe = regexp.MustCompile(`time=(\d+):(\d+):(\d+(?:\.\d+)?)`)

// FFmpegProgress converts ffmpeg's time= status against the total
// media duration.
type FFmpegProgress struct {
	Total time.Duration
}

// Parse extracts the elapsed time from an ffmpeg status line.
func (p *FFmpegProgress) Parse(line string) (float64, bool) {
	if p.Total <= 0 {
		return 0, false
	}
	m := ffmpegTimeRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}

	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.ParseFloat(m[3], 64)

	elapsed := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second))

	percent := float64(elapsed) / float64(p.Total) * 100
	if percent > 100 {
		percent = 100
	}
	return percent, true
}

var mkvmergeProgressRe = regexp.MustCompile(`Progress: (\d+)%`)

// MKVMergeProgress parses mkvmerge's "Progress: N%" lines. The value
// only ever moves forward; mkvmerge occasionally repeats lower values
// when switching phases.
type MKVMergeProgress struct {
	last float64
}

// Parse extracts the percentage from an mkvmerge progress line.
func (p *MKVMergeProgress) Parse(line string) (float64, bool) {
	m := mkvmergeProgressRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	percent, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if percent > p.last {
		p.last = percent
	}
	return p.last, true
}

// NewParser returns the parser for a plan, sized with the media
// duration for ffmpeg passes.
func NewParser(kind ParserKind, total time.Duration) ProgressParser {
	if kind == ParserMKVMerge {
		return &MKVMergeProgress{}
	}
	return &FFmpegProgress{Total: total}
}
