// Package config загружает настройки leg_media из YAML файла и переменных окружения.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/arzzra/leg_media/pkg/manager_media"
	"github.com/arzzra/leg_media/pkg/media_sdp"
	"github.com/arzzra/leg_media/pkg/multipart"
)

// EnvPrefix префикс переменных окружения (LEG_MEDIA_LEG_REWRITE_SDP и т.д.)
const EnvPrefix = "LEG_MEDIA"

// Config корневая конфигурация
type Config struct {
	Log   LogConfig   `mapstructure:"log"`
	Leg   LegConfig   `mapstructure:"leg"`
	Media MediaConfig `mapstructure:"media"`
}

// LogConfig настройки логирования
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

// LegConfig настройки плеча вызова
type LegConfig struct {
	RewriteSDP      bool   `mapstructure:"rewrite_sdp"`
	MultipartPrefix string `mapstructure:"multipart_prefix"`
	MaxBodySize     int    `mapstructure:"max_body_size"`
}

// MediaConfig настройки медиа слоя
type MediaConfig struct {
	LocalIP string   `mapstructure:"local_ip"`
	PortMin int      `mapstructure:"port_min"`
	PortMax int      `mapstructure:"port_max"`
	Codecs  []string `mapstructure:"codecs"`
	Ptime   int      `mapstructure:"ptime"`
	DSCP    int      `mapstructure:"dscp"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("leg.rewrite_sdp", false)
	v.SetDefault("leg.multipart_prefix", multipart.DefaultPrefix)
	v.SetDefault("leg.max_body_size", media_sdp.DefaultMaxBodySize)

	media := manager_media.DefaultManagerConfig()
	v.SetDefault("media.local_ip", media.LocalIP)
	v.SetDefault("media.port_min", media.RTPPortRange.Min)
	v.SetDefault("media.port_max", media.RTPPortRange.Max)
	v.SetDefault("media.codecs", media.AudioCodecs)
	v.SetDefault("media.ptime", media.Ptime)
	v.SetDefault("media.dscp", media.DSCP)
}

// Load читает конфигурацию. Пустой path - только значения по умолчанию и окружение.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if path != "" {
		dir := filepath.Dir(path)
		filename := filepath.Base(path)
		fileExt := filepath.Ext(filename)

		v.SetConfigName(strings.TrimSuffix(filename, fileExt))
		v.SetConfigType(strings.TrimPrefix(fileExt, "."))
		v.AddConfigPath(dir)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("ошибка чтения конфигурации %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate проверяет конфигурацию через Validate целевых пакетов
func (c *Config) Validate() error {
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("неизвестный формат логов: %q", c.Log.Format)
	}

	leg := c.LegConfig(nil, nil)
	if err := leg.Validate(); err != nil {
		return fmt.Errorf("leg: %w", err)
	}

	media := c.ManagerConfig(nil)
	if err := media.Validate(); err != nil {
		return fmt.Errorf("media: %w", err)
	}
	if c.Media.PortMin <= 0 || c.Media.PortMax <= c.Media.PortMin {
		return fmt.Errorf("media: некорректный диапазон портов %d-%d", c.Media.PortMin, c.Media.PortMax)
	}

	return nil
}

// LegConfig строит media_sdp.Config
func (c *Config) LegConfig(logger *slog.Logger, metrics *media_sdp.Metrics) media_sdp.Config {
	return media_sdp.Config{
		RewriteSDP:      c.Leg.RewriteSDP,
		MultipartPrefix: c.Leg.MultipartPrefix,
		MaxBodySize:     c.Leg.MaxBodySize,
		Logger:          logger,
		Metrics:         metrics,
	}
}

// ManagerConfig строит manager_media.ManagerConfig
func (c *Config) ManagerConfig(logger *slog.Logger) manager_media.ManagerConfig {
	return manager_media.ManagerConfig{
		LocalIP: c.Media.LocalIP,
		RTPPortRange: manager_media.PortRange{
			Min: c.Media.PortMin,
			Max: c.Media.PortMax,
		},
		DSCP:        c.Media.DSCP,
		AudioCodecs: c.Media.Codecs,
		Ptime:       c.Media.Ptime,
		Logger:      logger,
	}
}

// NewLogger создает slog логгер по настройкам Log
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch c.Log.Format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("неизвестный уровень логов: %q", s)
	}
	return level, nil
}
