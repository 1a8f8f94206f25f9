package media_sdp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arzzra/leg_media/pkg/buffer"
	"github.com/arzzra/leg_media/pkg/multipart"
	"github.com/arzzra/leg_media/pkg/sdp_rewrite"
)

// Leg связывает сессию сигнализации и медиа слой одного плеча вызова:
// переписывает входящий SDP, согласует его, активирует RTP и собирает
// исходящее multipart тело.
type Leg struct {
	session    Session
	media      MediaLayer
	config     Config
	state      State
	negotiator *Negotiator
	activator  *Activator
	rewriter   *sdp_rewrite.Engine
	logger     *slog.Logger
	metrics    *Metrics
}

// NewLeg создает плечо вызова
func NewLeg(session Session, media MediaLayer, config Config) (*Leg, error) {
	if session == nil {
		return nil, NewSDPErrorWithSession(ErrorCodeInvalidInput, "", "session не может быть nil")
	}
	if media == nil {
		return nil, NewSDPErrorWithSession(ErrorCodeInvalidInput, session.ID(), "media не может быть nil")
	}
	if err := config.Validate(); err != nil {
		return nil, WrapSDPError(ErrorCodeInvalidInput, session.ID(), err, "невалидная конфигурация")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("session_id", session.ID()))

	l := &Leg{
		session: session,
		media:   media,
		config:  config,
		logger:  logger.With(slog.String("component", "leg")),
		metrics: config.Metrics,
	}
	l.negotiator = NewNegotiator(media, &l.state, logger, config.Metrics)
	l.activator = NewActivator(media, &l.state, logger, config.Metrics)
	l.rewriter = sdp_rewrite.NewEngine(config.MaxBodySize, logger)

	return l, nil
}

// Session возвращает сессию сигнализации
func (l *Leg) Session() Session {
	return l.session
}

// State возвращает флаги медиа состояния
func (l *Leg) State() *State {
	return &l.state
}

// NegotiationState возвращает состояние текущей попытки согласования
func (l *Leg) NegotiationState() NegotiationState {
	return l.negotiator.State()
}

// Reset начинает новую попытку согласования. Флаги остаются установленными.
func (l *Leg) Reset() {
	l.negotiator.Reset()
}

// Negotiate согласует SDP без активации медиа
func (l *Leg) Negotiate(ctx context.Context, sdp string, kind SDPType) Outcome {
	return l.negotiator.Negotiate(ctx, l.session, sdp, kind)
}

// Activate активирует RTP транспорт под мьютексом плеча
func (l *Leg) Activate(ctx context.Context) error {
	return l.activator.Activate(ctx, l.session)
}

// RewriteSDP применяет правила sdp_replace* из переменных сессии
func (l *Leg) RewriteSDP(sdp string) (sdp_rewrite.Result, error) {
	res, err := l.rewriter.ApplyVariables(sdp, l.session.Variables())
	if err != nil {
		return res, WrapSDPError(ErrorCodeAllocation, l.session.ID(), err, "не удалось переписать SDP")
	}
	if res.Changed() {
		l.metrics.rewrite()
	}
	return res, nil
}

// EstablishMedia устанавливает раннее медиа по удаленному SDP.
//
// Последовательность: (замена подстрок) -> согласование -> выбор аудио порта ->
// активация RTP -> диспозиция EARLY MEDIA, флаг EarlyMedia и pre-answer.
// Флаги, установленные согласованием, при последующих сбоях не откатываются.
// Пустой SDP отклоняется без изменения состояния.
func (l *Leg) EstablishMedia(ctx context.Context, sdp string, kind SDPType) error {
	err := l.establishMedia(ctx, sdp, kind)
	l.metrics.establishment(err)
	return err
}

func (l *Leg) establishMedia(ctx context.Context, sdp string, kind SDPType) error {
	id := l.session.ID()

	if sdp == "" {
		return NewSDPErrorWithSession(ErrorCodeInvalidInput, id, "пустой SDP")
	}

	if l.config.RewriteSDP {
		res, err := l.RewriteSDP(sdp)
		if err != nil {
			return err
		}
		sdp = res.SDP
	}

	outcome := l.Negotiate(ctx, sdp, kind)
	if !outcome.Accepted {
		return NewSDPErrorWithSession(ErrorCodeNegotiationRejected, id, "SDP %s отклонен", kind)
	}

	if err := l.media.ChoosePort(ctx, l.session, MediaTypeAudio); err != nil {
		l.logger.Warn("Не удалось выбрать порт", slog.String("error", err.Error()))
		return WrapSDPError(ErrorCodePortSelection, id, err, "не удалось выбрать порт для %s", MediaTypeAudio)
	}

	if err := l.Activate(ctx); err != nil {
		return err
	}

	l.session.SetDisposition(DispositionEarlyMedia)
	l.state.Set(FlagEarlyMedia)
	l.session.MarkPreAnswered()

	l.logger.Debug("Раннее медиа установлено", slog.String("flags", l.state.String()))
	return nil
}

// BuildMultipart собирает multipart тело из переменной MultipartPrefix и SDP.
// nil без ошибки означает, что дополнительных частей нет и отправляется обычный SDP.
func (l *Leg) BuildMultipart(sdp string) (*multipart.Body, error) {
	return l.BuildMultipartWithPrefix(l.config.MultipartPrefix, sdp)
}

// BuildMultipartWithPrefix то же, что BuildMultipart, с явным именем переменной
func (l *Leg) BuildMultipartWithPrefix(prefix, sdp string) (*multipart.Body, error) {
	body, err := multipart.Build(l.session, prefix, sdp, l.config.MaxBodySize)
	if err != nil {
		code := ErrorCodeInvalidInput
		if errors.Is(err, buffer.ErrAllocation) {
			code = ErrorCodeAllocation
		}
		return nil, WrapSDPError(code, l.session.ID(), err, "не удалось собрать multipart для %s", prefix)
	}
	if body == nil {
		return nil, nil
	}

	l.metrics.multipart()
	l.logger.Debug("Собрано multipart тело",
		slog.String("content_type", body.ContentType),
		slog.Int("parts", body.Parts),
		slog.Bool("sdp", body.HasSDP))

	return body, nil
}

func (l *Leg) String() string {
	return fmt.Sprintf("Leg{session=%s state=%s flags=%s}", l.session.ID(), l.NegotiationState(), l.state.String())
}
