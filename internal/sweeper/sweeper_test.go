package sweeper

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrhook/arrhook/internal/config"
	"github.com/arrhook/arrhook/internal/notify"
)

type fakeProcessor struct {
	inst    config.NamedInstance
	calls   [][2]string
	result  *notify.Result
	procErr error
}

func (f *fakeProcessor) Instance() config.NamedInstance { return f.inst }

func (f *fakeProcessor) ProcessFile(_ context.Context, sourcePath, destPath string) (*notify.Result, error) {
	f.calls = append(f.calls, [2]string{sourcePath, destPath})
	return f.result, f.procErr
}

func delayedInstance(importRoot, intermediateRoot string) config.NamedInstance {
	return config.NamedInstance{
		Kind: "sonarr",
		InstanceConfig: config.InstanceConfig{
			Name:             "tv",
			Mode:             config.ModeImport,
			ImportRoot:       importRoot,
			DelayImport:      true,
			IntermediateRoot: intermediateRoot,
		},
	}
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestSweep_FindsDanglingDeliveries(t *testing.T) {
	media := t.TempDir()
	scratch := t.TempDir()

	writeFile(t, filepath.Join(media, "Some.Show.S01", "e01.mkv.tmp"))
	writeFile(t, filepath.Join(media, "Clean.Show.S02", "e01.mkv"))

	proc := &fakeProcessor{
		inst:   delayedInstance(media, scratch),
		result: &notify.Result{Outcome: notify.OutcomeImportedByPath},
	}

	s, err := New([]DeliveryProcessor{proc}, nil, config.SweepConfig{Schedule: "*/5 * * * *"}, nil)
	require.NoError(t, err)

	swept := s.Sweep(context.Background())
	assert.Equal(t, 1, swept)

	require.Len(t, proc.calls, 1, "only the delivery with a sentinel is swept")
	assert.Equal(t, filepath.Join(scratch, "Some.Show.S01"), proc.calls[0][0])
	assert.Equal(t, filepath.Join(media, "Some.Show.S01", "e01.mkv"), proc.calls[0][1])
}

func TestSweep_SkipsNonDelayedInstances(t *testing.T) {
	media := t.TempDir()
	writeFile(t, filepath.Join(media, "Some.Show.S01", "e01.mkv.tmp"))

	inst := delayedInstance(media, t.TempDir())
	inst.DelayImport = false
	proc := &fakeProcessor{inst: inst}

	s, err := New([]DeliveryProcessor{proc}, nil, config.SweepConfig{Schedule: "*/5 * * * *"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, s.Sweep(context.Background()))
	assert.Empty(t, proc.calls)
}

func TestSweep_ErrorDoesNotCount(t *testing.T) {
	media := t.TempDir()
	writeFile(t, filepath.Join(media, "Some.Show.S01", "e01.mkv.tmp"))

	proc := &fakeProcessor{
		inst:    delayedInstance(media, t.TempDir()),
		procErr: assert.AnError,
	}

	s, err := New([]DeliveryProcessor{proc}, nil, config.SweepConfig{Schedule: "*/5 * * * *"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, s.Sweep(context.Background()))
	assert.Len(t, proc.calls, 1)
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New(nil, nil, config.SweepConfig{Schedule: "every five minutes"}, nil)
	require.Error(t, err)
}

func TestStartStop(t *testing.T) {
	s, err := New(nil, nil, config.SweepConfig{Schedule: "*/5 * * * *"}, nil)
	require.NoError(t, err)

	s.Start(context.Background())
	s.Stop()

	// Stop again is a no-op.
	s.Stop()
}
