// Package channel реализует сигнальную сессию (канал) плеча вызова в объеме,
// нужном media_sdp: идентификатор, переменные, диспозиция и pre-answer.
package channel

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/arzzra/leg_media/pkg/variables"
)

// DispositionVariable переменная канала с диспозицией вызова
const DispositionVariable = "endpoint_disposition"

// Channel сигнальная сессия
type Channel struct {
	id     string
	logger *slog.Logger

	mutex       sync.RWMutex
	vars        *variables.Store
	preAnswered bool
	onPreAnswer func(id string)
}

// Option опция конфигурации канала
type Option func(*Channel) error

// WithID задает идентификатор вместо сгенерированного UUID
func WithID(id string) Option {
	return func(c *Channel) error {
		if id == "" {
			return fmt.Errorf("id не может быть пустым")
		}
		c.id = id
		return nil
	}
}

// WithVariables задает начальные переменные. Канал хранит свою копию.
func WithVariables(store *variables.Store) Option {
	return func(c *Channel) error {
		if store == nil {
			return fmt.Errorf("store не может быть nil")
		}
		c.vars = store.Clone()
		return nil
	}
}

// WithLogger устанавливает логгер
func WithLogger(logger *slog.Logger) Option {
	return func(c *Channel) error {
		if logger == nil {
			return fmt.Errorf("логгер не может быть nil")
		}
		c.logger = logger
		return nil
	}
}

// WithOnPreAnswer устанавливает обработчик перехода в pre-answer
func WithOnPreAnswer(fn func(id string)) Option {
	return func(c *Channel) error {
		c.onPreAnswer = fn
		return nil
	}
}

// New создает канал
func New(opts ...Option) (*Channel, error) {
	c := &Channel{
		id:     uuid.NewString(),
		logger: slog.Default(),
		vars:   variables.NewStore(),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("ошибка применения опции: %w", err)
		}
	}

	c.logger = c.logger.With(slog.String("component", "channel"), slog.String("session_id", c.id))
	return c, nil
}

// ID идентификатор канала
func (c *Channel) ID() string {
	return c.id
}

// Variables возвращает снимок переменных канала
func (c *Channel) Variables() *variables.Store {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.vars.Clone()
}

// SetVariable устанавливает переменную
func (c *Channel) SetVariable(name, value string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.vars.Set(name, value)
}

// AppendVariable добавляет значение к многозначной переменной
func (c *Channel) AppendVariable(name, value string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.vars.Append(name, value)
}

// Variable возвращает первое значение переменной
func (c *Channel) Variable(name string) (string, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.vars.Get(name)
}

// SetDisposition записывает диспозицию в переменную endpoint_disposition
func (c *Channel) SetDisposition(disposition string) {
	c.SetVariable(DispositionVariable, disposition)
	c.logger.Debug("Диспозиция", slog.String("disposition", disposition))
}

// Disposition возвращает текущую диспозицию
func (c *Channel) Disposition() string {
	d, _ := c.Variable(DispositionVariable)
	return d
}

// MarkPreAnswered переводит канал в состояние pre-answer.
// Обработчик вызывается только при первом переходе.
func (c *Channel) MarkPreAnswered() {
	c.mutex.Lock()
	first := !c.preAnswered
	c.preAnswered = true
	fn := c.onPreAnswer
	c.mutex.Unlock()

	if !first {
		return
	}

	c.logger.Info("Канал в состоянии pre-answer")
	if fn != nil {
		fn(c.id)
	}
}

// PreAnswered сообщает, был ли канал переведен в pre-answer
func (c *Channel) PreAnswered() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.preAnswered
}
