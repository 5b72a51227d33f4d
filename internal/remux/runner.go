package remux

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/arrhook/arrhook/internal/ffmpeg"
)

// ProgressFunc receives progress updates while a pass runs.
type ProgressFunc func(pass int, percent float64)

// Runner executes the full fix pipeline for one file, pass by pass,
// the way the original working-file convention expects: intermediates
// live next to the working output and are removed on success.
type Runner struct {
	tools  *ffmpeg.Tools
	prober Prober
	logger *slog.Logger

	// execute is swappable so tests do not shell out.
	execute func(ctx context.Context, tool string, args []string, parser ProgressParser, report func(float64)) error
}

// NewRunner creates a pipeline runner.
func NewRunner(tools *ffmpeg.Tools, prober Prober, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{tools: tools, prober: prober, logger: logger}
	r.execute = r.runCommand
	return r
}

// Run checks the file and, when it matches, drives all four passes.
// It returns the fixed output path, or "" when the file needed no fix.
func (r *Runner) Run(ctx context.Context, fileIn, fileOut string, progress ProgressFunc) (string, error) {
	needsFix, probe, err := NewDetector(r.prober).Check(ctx, fileIn)
	if err != nil {
		return "", fmt.Errorf("probing %s: %w", fileIn, err)
	}
	if !needsFix {
		r.logger.Debug("file does not match fix criteria", slog.String("file", fileIn))
		return "", nil
	}
	total := probe.Duration()

	req := Request{FileIn: fileIn, FileOut: fileOut, Pass: PassSplit}
	var finalOut string

	for {
		plan, err := NextPlan(req)
		if err != nil {
			return "", err
		}

		r.logger.Info("running fix pass",
			slog.Int("pass", plan.Pass),
			slog.String("tool", plan.Tool),
			slog.String("out", plan.FileOut),
		)

		parser := NewParser(plan.Parser, total)
		report := func(pct float64) {
			if progress != nil {
				progress(plan.Pass, pct)
			}
		}
		if err := r.execute(ctx, plan.Tool, plan.Args, parser, report); err != nil {
			return "", fmt.Errorf("pass %d (%s): %w", plan.Pass, plan.Tool, err)
		}

		finalOut = plan.FileOut
		if !plan.Repeat {
			break
		}
		req = Request{FileIn: plan.FileOut, FileOut: fileOut, Pass: plan.NextPass}
	}

	r.cleanup(fileOut)
	return finalOut, nil
}

func (r *Runner) resolveTool(tool string) (string, error) {
	switch tool {
	case "ffmpeg":
		return r.tools.FFmpeg()
	case "mkvmerge":
		return r.tools.MKVMerge()
	default:
		return "", fmt.Errorf("unknown tool %q", tool)
	}
}

// cleanup removes the intermediate scratch files.
func (r *Runner) cleanup(fileOut string) {
	for _, path := range Intermediates(fileOut) {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			r.logger.Warn("failed to remove intermediate",
				slog.String("file", path),
				slog.String("error", err.Error()),
			)
		}
	}
}

// runCommand executes one external command, feeding its combined
// output through the progress parser line by line. ffmpeg writes
// status to stderr with carriage returns, so lines are split on both.
func (r *Runner) runCommand(ctx context.Context, tool string, args []string, parser ProgressParser, report func(float64)) error {
	bin, err := r.resolveTool(tool)
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, bin, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", bin, err)
	}

	scan := func(rd *bufio.Scanner) {
		rd.Split(scanProgressLines)
		for rd.Scan() {
			if pct, ok := parser.Parse(rd.Text()); ok {
				report(pct)
			}
		}
	}

	done := make(chan struct{})
	go func() {
		scan(bufio.NewScanner(stdout))
		close(done)
	}()
	scan(bufio.NewScanner(stderr))
	<-done

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%s exited: %w", bin, err)
	}
	return nil
}

// scanProgressLines splits on newlines and carriage returns, since
// ffmpeg rewrites its status line with \r.
func scanProgressLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}
