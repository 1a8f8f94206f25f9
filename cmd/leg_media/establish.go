package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/arzzra/leg_media/pkg/channel"
	"github.com/arzzra/leg_media/pkg/config"
	"github.com/arzzra/leg_media/pkg/manager_media"
	"github.com/arzzra/leg_media/pkg/media_sdp"
	"github.com/arzzra/leg_media/pkg/variables"
)

func newEstablishCmd(opts *options) *cobra.Command {
	var (
		answer      bool
		hold        time.Duration
		showMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "establish",
		Short: "Согласовать удаленный SDP, активировать RTP и вывести 183 с локальным SDP",
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

			kind := media_sdp.SDPTypeOffer
			if answer {
				kind = media_sdp.SDPTypeAnswer
			}

			reg := prometheus.NewRegistry()
			run := establishRun{
				cfg:     cfg,
				logger:  logger,
				metrics: media_sdp.NewMetrics(reg, "leg_media"),
				vars:    vars,
				hold:    hold,
			}
			if err := run.execute(cmd.Context(), sdp, kind, cmd.OutOrStdout()); err != nil {
				return err
			}

			if showMetrics {
				return writeMetrics(reg, cmd.ErrOrStderr())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&answer, "answer", false, "SDP является ответом, а не предложением")
	cmd.Flags().DurationVar(&hold, "hold", 0, "держать RTP транспорт открытым указанное время")
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "вывести счетчики в stderr")

	return cmd
}

type establishRun struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *media_sdp.Metrics
	vars    *variables.Store
	hold    time.Duration
}

func (r *establishRun) execute(ctx context.Context, sdp string, kind media_sdp.SDPType, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	manager, err := manager_media.NewMediaManager(r.cfg.ManagerConfig(r.logger))
	if err != nil {
		return err
	}
	defer manager.Stop()

	ch, err := channel.New(channel.WithVariables(r.vars), channel.WithLogger(r.logger))
	if err != nil {
		return err
	}

	leg, err := media_sdp.NewLeg(ch, manager, r.cfg.LegConfig(r.logger, r.metrics))
	if err != nil {
		return err
	}

	if err := leg.EstablishMedia(ctx, sdp, kind); err != nil {
		return err
	}

	r.logger.Info("Раннее медиа установлено",
		slog.String("session_id", ch.ID()),
		slog.String("flags", leg.State().String()),
		slog.String("disposition", ch.Disposition()))

	var localSDP string
	if kind == media_sdp.SDPTypeOffer && !leg.State().NoReply() {
		localSDP, err = manager.LocalSDP(ch.ID())
		if err != nil {
			return err
		}
	}

	body, err := leg.BuildMultipart(localSDP)
	if err != nil {
		return err
	}
	if err := writeProgress(out, ch.ID(), localSDP, body); err != nil {
		return err
	}

	if r.hold > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(r.hold):
		}
	}
	return nil
}

// writeMetrics выводит ненулевые счетчики в виде name{labels} value
func writeMetrics(reg *prometheus.Registry, out io.Writer) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}

	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			value := m.GetCounter().GetValue()
			if value == 0 {
				continue
			}
			var labels []string
			for _, l := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", mf.GetName(), strings.Join(labels, ","), value))
		}
	}
	sort.Strings(lines)

	for _, line := range lines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}
