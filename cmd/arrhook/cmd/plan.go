package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arrhook/arrhook/internal/ffmpeg"
	"github.com/arrhook/arrhook/internal/remux"
)

var (
	planRequest remux.Request
	planKind    string
)

// planCmd prints the command plan for one pass of a fix pipeline.
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the command plan for a fix pipeline pass",
	Long: `Print the command plan for one pass of a fix pipeline as JSON, for
external runners that execute the passes themselves.

The container fix plan carries a repeat flag and the next pass number;
callers loop until repeat is false. The stereo_downmix and hvc1_retag
pipelines are single-pass and probe the input file first.`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringVar(&planRequest.FileIn, "in", "", "input file for this pass")
	planCmd.Flags().StringVar(&planRequest.FileOut, "out", "", "working output path")
	planCmd.Flags().IntVar(&planRequest.Pass, "pass", 0, "pass number (0 means first)")
	planCmd.Flags().StringVar(&planKind, "kind", "", "pipeline kind: container_fix, stereo_downmix, or hvc1_retag")
	planCmd.MarkFlagRequired("in")
	planCmd.MarkFlagRequired("out")
}

func runPlan(cmd *cobra.Command, args []string) error {
	planRequest.Kind = remux.Kind(planKind)

	var plan *remux.Plan
	switch planRequest.Kind {
	case "", remux.KindContainerFix:
		var err error
		plan, err = remux.NextPlan(planRequest)
		if err != nil {
			return err
		}

	case remux.KindStereoDownmix, remux.KindRetag:
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		tools := ffmpeg.NewTools(cfg.Remux)
		ffprobePath, err := tools.FFprobe()
		if err != nil {
			return fmt.Errorf("locating ffprobe: %w", err)
		}
		prober := ffmpeg.NewProber(ffprobePath).WithTimeout(cfg.Remux.ProbeTimeout)

		probe, err := prober.Probe(cmd.Context(), planRequest.FileIn)
		if err != nil {
			return fmt.Errorf("probing %s: %w", planRequest.FileIn, err)
		}

		opts := remux.Options{
			DownmixFormula: cfg.Remux.DownmixFormula,
			Faststart:      cfg.Remux.Faststart,
		}
		if planRequest.Kind == remux.KindStereoDownmix {
			plan = remux.DownmixPlan(probe, planRequest.FileIn, planRequest.FileOut, opts)
		} else {
			plan = remux.RetagPlan(probe, planRequest.FileIn, planRequest.FileOut, opts)
		}
		if plan == nil {
			fmt.Println("file does not need processing")
			return nil
		}

	default:
		return fmt.Errorf("unknown pipeline kind %q", planKind)
	}

	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling plan: %w", err)
	}

	fmt.Println(string(data))
	return nil
}
