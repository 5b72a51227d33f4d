package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/arrhook/arrhook/internal/ffmpeg"
	"github.com/arrhook/arrhook/internal/remux"
)

var fixOutput string

// fixCmd runs the full container fix pipeline on one file.
var fixCmd = &cobra.Command{
	Use:   "fix FILE",
	Short: "Repair a malformed RARBG-style mp4",
	Long: `Probe FILE and, when it matches the malformed container signature,
run the full four-pass fix pipeline: split into video and audio mkvs,
rewrite each with mkvmerge, and recombine into a clean mp4.

Requires ffmpeg, ffprobe, and mkvmerge.`,
	Args: cobra.ExactArgs(1),
	RunE: runFix,
}

func init() {
	rootCmd.AddCommand(fixCmd)

	fixCmd.Flags().StringVar(&fixOutput, "output", "", "working output path (default alongside the input)")
}

func runFix(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := slog.Default()
	fileIn := args[0]

	fileOut := fixOutput
	if fileOut == "" {
		fileOut = fileIn
	}

	tools := ffmpeg.NewTools(cfg.Remux)
	ffprobePath, err := tools.FFprobe()
	if err != nil {
		return fmt.Errorf("locating ffprobe: %w", err)
	}
	prober := ffmpeg.NewProber(ffprobePath).WithTimeout(cfg.Remux.ProbeTimeout)

	runner := remux.NewRunner(tools, prober, logger)
	fixed, err := runner.Run(cmd.Context(), fileIn, fileOut, func(pass int, percent float64) {
		fmt.Fprintf(os.Stderr, "\rpass %d/4: %5.1f%%", pass, percent)
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	if fixed == "" {
		fmt.Println("file does not need fixing")
		return nil
	}

	fmt.Printf("fixed file written to %s\n", fixed)
	return nil
}
