package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hamed0406/pingmonitor/internal/config"
	"github.com/hamed0406/pingmonitor/internal/retention"
)

func newValidateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the target file and schedule settings without probing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load(v)
			out := cmd.OutOrStdout()

			data, err := os.ReadFile(cfg.TargetsFile)
			if err != nil {
				return err
			}
			snap, err := config.ParseTargets(data)
			if err != nil {
				return err
			}
			if len(snap.Targets) == 0 {
				return config.ErrNoTargets
			}
			for _, id := range snap.IDs() {
				t := snap.Targets[id]
				fmt.Fprintf(out, "%-40s %-4s every %-6s latency<=%gms alert after %d\n",
					t.ID, t.Kind, t.Interval, t.LatencyThresholdMS, t.AlertThreshold)
			}

			if cfg.RetentionDays > 0 {
				if err := retention.ValidSchedule(cfg.RetentionSchedule); err != nil {
					return fmt.Errorf("RETENTION_SCHEDULE %q: %w", cfg.RetentionSchedule, err)
				}
			}
			fmt.Fprintf(out, "%d targets ok\n", len(snap.Targets))
			return nil
		},
	}
}
