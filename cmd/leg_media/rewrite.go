package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/arzzra/leg_media/pkg/sdp_rewrite"
	"github.com/arzzra/leg_media/pkg/variables"
)

func newRewriteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rewrite",
		Short: "Применить правила sdp_replace* из переменных к SDP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			vars, err := opts.variables()
			if err != nil {
				return err
			}
			sdp, err := opts.sdp(cmd.InOrStdin())
			if err != nil {
				return err
			}

			engine := sdp_rewrite.NewEngine(cfg.Leg.MaxBodySize, logger)
			return runRewrite(engine, vars, sdp, cmd.OutOrStdout())
		},
	}
}

func runRewrite(engine *sdp_rewrite.Engine, vars *variables.Store, sdp string, out io.Writer) error {
	res, err := engine.ApplyVariables(sdp, vars)
	if err != nil {
		return fmt.Errorf("ошибка замены: %w", err)
	}

	_, err = io.WriteString(out, res.SDP)
	return err
}
