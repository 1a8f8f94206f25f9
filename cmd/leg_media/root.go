package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/arzzra/leg_media/pkg/config"
	"github.com/arzzra/leg_media/pkg/variables"
)

// options общие флаги команд
type options struct {
	configFile string
	varsFile   string
	sdpFile    string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "leg_media",
		Short: "Отладка SDP плеча вызова: замена подстрок, multipart, раннее медиа",
		Long: `leg_media выполняет отдельные шаги обработки SDP плеча вызова:
  rewrite   - применить правила sdp_replace* к SDP
  multipart - собрать multipart тело из переменных sip_multipart
  establish - согласовать SDP, активировать RTP и вывести 183 ответ`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "файл конфигурации (YAML)")
	root.PersistentFlags().StringVar(&opts.varsFile, "vars", "", "файл переменных канала (YAML)")
	root.PersistentFlags().StringVar(&opts.sdpFile, "sdp", "-", "файл с SDP, - для stdin")

	root.AddCommand(newRewriteCmd(opts))
	root.AddCommand(newMultipartCmd(opts))
	root.AddCommand(newEstablishCmd(opts))

	return root
}

// load загружает конфигурацию и настраивает логгер по умолчанию
func (o *options) load(stderr io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, nil, err
	}

	logger, err := cfg.NewLogger(stderr)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)

	return cfg, logger, nil
}

// variables читает переменные канала, без файла - пустой набор
func (o *options) variables() (*variables.Store, error) {
	if o.varsFile == "" {
		return variables.NewStore(), nil
	}

	f, err := os.Open(o.varsFile)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия %s: %w", o.varsFile, err)
	}
	defer f.Close()

	return variables.LoadYAML(f)
}

// sdp читает SDP из файла или stdin. Переводы строк приводятся к CRLF.
func (o *options) sdp(stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if o.sdpFile == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(o.sdpFile)
	}
	if err != nil {
		return "", fmt.Errorf("ошибка чтения SDP: %w", err)
	}
	return normalizeCRLF(string(data)), nil
}
