package media_sdp

import (
	"context"
	"log/slog"
	"sync"
)

// Activator запускает RTP транспорт сессии под мьютексом.
//
// Мьютекс сериализует только вызов медиа слоя, например гонку между
// re-INVITE с hold/resume и первичным установлением. Шаг согласования под
// ним не выполняется. RTPActive и IOActive устанавливаются вместе и только
// после успешной активации.
type Activator struct {
	mu      sync.Mutex
	media   MediaLayer
	state   *State
	logger  *slog.Logger
	metrics *Metrics
}

// NewActivator создает Activator, пишущий флаги в state
func NewActivator(media MediaLayer, state *State, logger *slog.Logger, metrics *Metrics) *Activator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activator{
		media:   media,
		state:   state,
		logger:  logger.With(slog.String("component", "activator")),
		metrics: metrics,
	}
}

// Activate активирует транспорт сессии
func (a *Activator) Activate(ctx context.Context, session Session) error {
	err := a.activateLocked(ctx, session)
	a.metrics.activation(err)

	if err != nil {
		a.logger.Warn("Не удалось активировать RTP",
			slog.String("session_id", session.ID()),
			slog.String("error", err.Error()))
		return WrapSDPError(ErrorCodeActivation, session.ID(), err, "не удалось активировать RTP транспорт")
	}

	a.state.Set(FlagRTPActive | FlagIOActive)
	return nil
}

// activateLocked держит мьютекс только на время вызова медиа слоя.
// defer освобождает его на любом выходе, включая панику в медиа слое.
func (a *Activator) activateLocked(ctx context.Context, session Session) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.media.ActivateTransport(ctx, session)
}
