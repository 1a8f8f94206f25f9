package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/emiago/sipgo/sip"
	"github.com/spf13/cobra"

	"github.com/arzzra/leg_media/pkg/multipart"
	"github.com/arzzra/leg_media/pkg/variables"
)

func newMultipartCmd(opts *options) *cobra.Command {
	var (
		boundary string
		prefix   string
	)

	cmd := &cobra.Command{
		Use:   "multipart",
		Short: "Собрать 183 Session Progress с multipart телом",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load(cmd.ErrOrStderr())
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
			if prefix == "" {
				prefix = cfg.Leg.MultipartPrefix
			}

			src := &staticSource{id: boundary, vars: vars}
			body, err := multipart.Build(src, prefix, sdp, cfg.Leg.MaxBodySize)
			if err != nil {
				return err
			}
			return writeProgress(cmd.OutOrStdout(), boundary, sdp, body)
		},
	}

	cmd.Flags().StringVar(&boundary, "boundary", "leg-media-boundary", "граница multipart (ID сессии)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "имя переменной с частями (по умолчанию из конфигурации)")

	return cmd
}

// staticSource источник частей из файла переменных
type staticSource struct {
	id   string
	vars *variables.Store
}

func (s *staticSource) ID() string                  { return s.id }
func (s *staticSource) Variables() *variables.Store { return s.vars }

// writeProgress выводит 183 ответ с телом на INVITE с Call-ID callID
func writeProgress(out io.Writer, callID, sdp string, body *multipart.Body) error {
	req := sip.NewRequest(sip.INVITE, sip.Uri{User: "leg", Host: "127.0.0.1", Port: 5060})
	req.AppendHeader(&sip.FromHeader{
		Address: sip.Uri{User: "caller", Host: "127.0.0.1"},
		Params:  sip.NewParams(),
	})
	req.AppendHeader(&sip.ToHeader{Address: req.Recipient, Params: sip.NewParams()})
	cid := sip.CallIDHeader(callID)
	req.AppendHeader(&cid)
	req.AppendHeader(&sip.CSeqHeader{SeqNo: 1, MethodName: sip.INVITE})

	res := sip.NewResponseFromRequest(req, 183, "Session Progress", nil)
	multipart.Attach(res, sdp, body)

	_, err := fmt.Fprint(out, res.String())
	return err
}

func normalizeCRLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}
