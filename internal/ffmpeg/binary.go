package ffmpeg

import (
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/arrhook/arrhook/internal/config"
)

// Environment overrides for tool locations, checked before $PATH.
const (
	EnvFFmpegBinary   = "ARRHOOK_FFMPEG_BINARY"
	EnvFFprobeBinary  = "ARRHOOK_FFPROBE_BINARY"
	EnvMKVMergeBinary = "ARRHOOK_MKVMERGE_BINARY"
)

// Tools resolves and caches the external tool binaries the remux
// pipeline shells out to.
type Tools struct {
	cfg config.RemuxConfig

	mu       sync.Mutex
	resolved map[string]string
}

// NewTools creates a tool locator. Configured paths win over
// environment overrides, which win over $PATH lookup.
func NewTools(cfg config.RemuxConfig) *Tools {
	return &Tools{cfg: cfg, resolved: make(map[string]string)}
}

// FFmpeg returns the ffmpeg binary path.
func (t *Tools) FFmpeg() (string, error) {
	return t.resolve("ffmpeg", t.cfg.FFmpegPath, EnvFFmpegBinary)
}

// FFprobe returns the ffprobe binary path.
func (t *Tools) FFprobe() (string, error) {
	return t.resolve("ffprobe", t.cfg.FFprobePath, EnvFFprobeBinary)
}

// MKVMerge returns the mkvmerge binary path.
func (t *Tools) MKVMerge() (string, error) {
	return t.resolve("mkvmerge", t.cfg.MKVMergePath, EnvMKVMergeBinary)
}

func (t *Tools) resolve(name, configured, envVar string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if path, ok := t.resolved[name]; ok {
		return path, nil
	}

	candidates := []string{configured, os.Getenv(envVar), name}
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		path, err := exec.LookPath(candidate)
		if err != nil {
			continue
		}
		t.resolved[name] = path
		return path, nil
	}

	return "", fmt.Errorf("%s not found in config, %s, or PATH", name, envVar)
}
