package media_sdp

import (
	"context"

	"github.com/arzzra/leg_media/pkg/variables"
)

// SDPType роль SDP в модели offer/answer
type SDPType int

const (
	SDPTypeOffer SDPType = iota
	SDPTypeAnswer
)

func (t SDPType) String() string {
	switch t {
	case SDPTypeOffer:
		return "offer"
	case SDPTypeAnswer:
		return "answer"
	default:
		return "unknown"
	}
}

// MediaType тип медиа для выбора порта
type MediaType int

const (
	MediaTypeAudio MediaType = iota
	MediaTypeVideo
)

func (t MediaType) String() string {
	switch t {
	case MediaTypeAudio:
		return "audio"
	case MediaTypeVideo:
		return "video"
	default:
		return "unknown"
	}
}

// DispositionEarlyMedia значение диспозиции после установления раннего медиа
const DispositionEarlyMedia = "EARLY MEDIA"

// Session сессия сигнального уровня в том объеме, который нужен согласованию.
// Реализуется слоем сигнализации, которому принадлежат канал и его переменные.
type Session interface {
	// ID уникальный идентификатор сессии, также граница multipart
	ID() string

	// Variables возвращает неизменяемый снимок переменных канала
	Variables() *variables.Store

	// SetDisposition записывает диспозицию вызова
	SetDisposition(disposition string)

	// MarkPreAnswered переводит канал в состояние pre-answer
	MarkPreAnswered()
}

// MediaLayer медиа-транспортный уровень: выбор кодеков, портов и активация RTP
type MediaLayer interface {
	// NegotiateSDP выполняет семантическое согласование SDP.
	// accepted - SDP принят; shouldReply=false - на транзакцию не нужно отвечать.
	NegotiateSDP(ctx context.Context, session Session, sdp string, kind SDPType) (accepted, shouldReply bool)

	// ChoosePort выбирает локальный порт для указанного типа медиа
	ChoosePort(ctx context.Context, session Session, mediaType MediaType) error

	// ActivateTransport привязывает и запускает RTP путь
	ActivateTransport(ctx context.Context, session Session) error
}
