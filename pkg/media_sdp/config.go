package media_sdp

import (
	"fmt"
	"log/slog"

	"github.com/arzzra/leg_media/pkg/multipart"
)

// DefaultMaxBodySize ограничение размера собираемых тел по умолчанию (1 MiB)
const DefaultMaxBodySize = 1 << 20

// Config содержит настройки Leg
type Config struct {
	// RewriteSDP включает замену подстрок входящего SDP по переменным sdp_replace*
	RewriteSDP bool

	// MultipartPrefix имя переменной с дополнительными частями тела
	MultipartPrefix string

	// MaxBodySize ограничение размера переписанного SDP и multipart тела (0 - без ограничения)
	MaxBodySize int

	// Logger для диагностики, nil - slog.Default()
	Logger *slog.Logger

	// Metrics счетчики, nil - метрики не собираются
	Metrics *Metrics
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		RewriteSDP:      false,
		MultipartPrefix: multipart.DefaultPrefix,
		MaxBodySize:     DefaultMaxBodySize,
	}
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.MultipartPrefix == "" {
		return fmt.Errorf("MultipartPrefix не может быть пустым")
	}
	if c.MaxBodySize < 0 {
		return fmt.Errorf("MaxBodySize не может быть отрицательным: %d", c.MaxBodySize)
	}
	return nil
}
