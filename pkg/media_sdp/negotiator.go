package media_sdp

import (
	"context"
	"log/slog"

	"github.com/looplab/fsm"
)

// NegotiationState состояние попытки согласования
type NegotiationState string

const (
	NegotiationIdle        NegotiationState = "idle"
	NegotiationNegotiating NegotiationState = "negotiating"
	NegotiationNegotiated  NegotiationState = "negotiated"
	NegotiationRejected    NegotiationState = "rejected"
)

const (
	eventNegotiate = "negotiate"
	eventAccept    = "accept"
	eventReject    = "reject"
)

// Outcome результат согласования
type Outcome struct {
	Accepted    bool // SDP принят медиа слоем
	ShouldReply bool // false - SIP ответ на транзакцию не отправляется
}

// Negotiator передает SDP медиа слою и отражает результат во флагах сессии.
// Повторов не делает: согласование синхронно и детерминировано для вызывающего.
type Negotiator struct {
	media   MediaLayer
	state   *State
	machine *fsm.FSM
	logger  *slog.Logger
	metrics *Metrics
}

// NewNegotiator создает Negotiator, пишущий флаги в state
func NewNegotiator(media MediaLayer, state *State, logger *slog.Logger, metrics *Metrics) *Negotiator {
	if logger == nil {
		logger = slog.Default()
	}

	n := &Negotiator{
		media:   media,
		state:   state,
		logger:  logger.With(slog.String("component", "negotiator")),
		metrics: metrics,
	}

	n.machine = fsm.NewFSM(
		string(NegotiationIdle),
		fsm.Events{
			// Новая попытка возможна из любого завершенного состояния (re-INVITE, UPDATE)
			{Name: eventNegotiate, Src: []string{string(NegotiationIdle), string(NegotiationNegotiated), string(NegotiationRejected)}, Dst: string(NegotiationNegotiating)},
			{Name: eventAccept, Src: []string{string(NegotiationNegotiating)}, Dst: string(NegotiationNegotiated)},
			{Name: eventReject, Src: []string{string(NegotiationNegotiating)}, Dst: string(NegotiationRejected)},
		},
		fsm.Callbacks{
			"enter_state": func(ctx context.Context, e *fsm.Event) {
				n.metrics.transition(e.Src, e.Dst)
				n.logger.Debug("Переход состояния согласования",
					slog.String("from", e.Src),
					slog.String("to", e.Dst),
					slog.String("event", e.Event))
			},
		},
	)

	return n
}

// State возвращает текущее состояние попытки
func (n *Negotiator) State() NegotiationState {
	return NegotiationState(n.machine.Current())
}

// Reset возвращает автомат в idle. Флаги сессии не сбрасываются.
func (n *Negotiator) Reset() {
	n.machine.SetState(string(NegotiationIdle))
}

// Negotiate выполняет одну попытку согласования.
// При accepted устанавливается SDPNegotiated, при shouldReply=false - NoReply
// независимо от accepted.
func (n *Negotiator) Negotiate(ctx context.Context, session Session, sdp string, kind SDPType) Outcome {
	n.fire(ctx, eventNegotiate)

	accepted, shouldReply := n.media.NegotiateSDP(ctx, session, sdp, kind)

	if accepted {
		n.state.Set(FlagSDPNegotiated)
		n.fire(ctx, eventAccept)
	} else {
		n.fire(ctx, eventReject)
		n.logger.Info("SDP отклонен медиа слоем",
			slog.String("session_id", session.ID()),
			slog.String("kind", kind.String()))
	}

	if !shouldReply {
		n.state.Set(FlagNoReply)
	}

	n.metrics.negotiation(kind, accepted, shouldReply)

	return Outcome{Accepted: accepted, ShouldReply: shouldReply}
}

func (n *Negotiator) fire(ctx context.Context, event string) {
	if err := n.machine.Event(ctx, event); err != nil {
		n.logger.Warn("Недопустимый переход состояния согласования",
			slog.String("event", event),
			slog.String("state", n.machine.Current()),
			slog.String("error", err.Error()))
	}
}
