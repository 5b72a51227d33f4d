package remux

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Pass numbers of the fix pipeline.
const (
	PassSplit     = 1
	PassFixVideo  = 2
	PassFixAudio  = 3
	PassRecombine = 4
	passCount     = 4
	workingInfix  = "-WORKING-"
)

// ParserKind selects the progress parser for a pass's output.
type ParserKind string

const (
	ParserFFmpeg   ParserKind = "ffmpeg"
	ParserMKVMerge ParserKind = "mkvmerge"
)

// Request describes the state the caller carries between passes.
type Request struct {
	// Kind selects the pipeline. Empty means the container fix.
	Kind Kind `json:"kind,omitempty"`

	// FileIn is the input for this pass. On the first pass this is the
	// original file; later passes override it with intermediates.
	FileIn string `json:"file_in"`

	// FileOut is the working output path. Its stem names the
	// intermediate files for all passes.
	FileOut string `json:"file_out"`

	// Pass is the pass to plan. Zero means the first pass.
	Pass int `json:"pass"`
}

// Plan is one executable pass of the pipeline.
type Plan struct {
	Pass    int        `json:"pass"`
	Tool    string     `json:"tool"` // "ffmpeg" or "mkvmerge"
	Args    []string   `json:"args"`
	FileIn  string     `json:"file_in"`
	FileOut string     `json:"file_out"`
	Parser  ParserKind `json:"parser"`

	// Repeat tells the caller to come back with NextPass after this
	// pass completes.
	Repeat   bool `json:"repeat"`
	NextPass int  `json:"next_pass,omitempty"`
}

// BaseName derives the stem that names all intermediate files: the
// working output path with its extension stripped and any host
// working-file infix removed.
func BaseName(fileOut string) string {
	stem := strings.TrimSuffix(fileOut, filepath.Ext(fileOut))
	if idx := strings.LastIndex(stem, workingInfix); idx >= 0 {
		stem = stem[:idx]
	}
	return stem
}

// NextPlan builds the command plan for the requested pass. The four
// passes are fixed:
//
//  1. split the mp4 into video(+subtitle) and audio mkvs
//  2. rewrite the video mkv with mkvmerge
//  3. rewrite the audio mkv with mkvmerge
//  4. recombine both into a clean mp4
func NextPlan(req Request) (*Plan, error) {
	base := BaseName(req.FileOut)
	pass := req.Pass
	if pass == 0 {
		pass = PassSplit
	}

	videoOut := base + ".rarbg_video.mkv"
	audioOut := base + ".rarbg_audio.mkv"
	videoFixed := base + ".rarbg_video_fixed.mkv"
	audioFixed := base + ".rarbg_audio_fixed.mkv"

	switch pass {
	case PassSplit:
		return &Plan{
			Pass:    PassSplit,
			Tool:    "ffmpeg",
			FileIn:  req.FileIn,
			FileOut: videoOut,
			Args: []string{
				"-y",
				"-i", req.FileIn,
				"-map", "0:v",
				"-map", "0:s?",
				"-c:v", "copy",
				videoOut,
				"-map", "0:a",
				"-c:a", "copy",
				audioOut,
			},
			Parser:   ParserFFmpeg,
			Repeat:   true,
			NextPass: PassFixVideo,
		}, nil

	case PassFixVideo:
		return &Plan{
			Pass:    PassFixVideo,
			Tool:    "mkvmerge",
			FileIn:  videoOut,
			FileOut: videoFixed,
			Args: []string{
				"-A",
				"-S",
				"-o", videoFixed,
				videoOut,
			},
			Parser:   ParserMKVMerge,
			Repeat:   true,
			NextPass: PassFixAudio,
		}, nil

	case PassFixAudio:
		return &Plan{
			Pass:    PassFixAudio,
			Tool:    "mkvmerge",
			FileIn:  audioOut,
			FileOut: audioFixed,
			Args: []string{
				"-D",
				"-o", audioFixed,
				audioOut,
			},
			Parser:   ParserMKVMerge,
			Repeat:   true,
			NextPass: PassRecombine,
		}, nil

	case PassRecombine:
		finalOut := base + ".rarbg_fixed.mp4"
		return &Plan{
			Pass:    PassRecombine,
			Tool:    "ffmpeg",
			FileIn:  req.FileIn,
			FileOut: finalOut,
			Args: []string{
				"-y",
				"-i", videoFixed,
				"-i", audioFixed,
				"-c", "copy",
				"-map", "0",
				"-map", "1",
				finalOut,
			},
			Parser: ParserFFmpeg,
			Repeat: false,
		}, nil

	default:
		return nil, fmt.Errorf("invalid pass %d, pipeline has %d passes", pass, passCount)
	}
}

// Intermediates returns the scratch files the pipeline creates for a
// working output path, excluding the final fixed mp4.
func Intermediates(fileOut string) []string {
	base := BaseName(fileOut)
	return []string{
		base + ".rarbg_video.mkv",
		base + ".rarbg_audio.mkv",
		base + ".rarbg_video_fixed.mkv",
		base + ".rarbg_audio_fixed.mkv",
	}
}
