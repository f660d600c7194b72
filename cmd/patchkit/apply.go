package main

import (
	"github.com/autom8ter/patchkit"
	"github.com/spf13/cobra"
)

func applyCmd(g *globals) *cobra.Command {
	var planPath string
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "run every step of a yaml or json plan file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			plan, err := patchkit.LoadPlanFile(planPath)
			if err != nil {
				return err
			}
			runner, flush, err := g.runner(cfg)
			if err != nil {
				return err
			}
			defer flush()
			_, err = runner.Run(cmd.Context(), plan, cfg.StoreOpener())
			return err
		},
	}
	cmd.Flags().StringVarP(&planPath, "file", "f", "patchkit.yaml", "path to the plan file")
	return cmd
}
