package media_sdp

import (
	"strings"
	"sync/atomic"
)

// Flag флаг медиа состояния сессии
type Flag uint32

const (
	// FlagSDPNegotiated SDP успешно согласован
	FlagSDPNegotiated Flag = 1 << iota
	// FlagNoReply на текущую транзакцию не нужно отправлять SIP ответ
	FlagNoReply
	// FlagRTPActive RTP транспорт активирован
	FlagRTPActive
	// FlagIOActive медиа ввод/вывод запущен
	FlagIOActive
	// FlagEarlyMedia медиа идет до окончательного ответа
	FlagEarlyMedia
)

var flagNames = []struct {
	flag Flag
	name string
}{
	{FlagSDPNegotiated, "sdp_negotiated"},
	{FlagNoReply, "no_reply"},
	{FlagRTPActive, "rtp_active"},
	{FlagIOActive, "io_active"},
	{FlagEarlyMedia, "early_media"},
}

func (f Flag) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, "|")
}

// State набор флагов медиа состояния.
//
// Флаги монотонны: в пределах попытки согласования они только устанавливаются.
// Каждая запись атомарна, RTPActive и IOActive пишутся одной операцией.
type State struct {
	flags atomic.Uint32
}

// Set устанавливает флаги
func (s *State) Set(f Flag) {
	s.flags.Or(uint32(f))
}

// Has проверяет, установлены ли все указанные флаги
func (s *State) Has(f Flag) bool {
	return Flag(s.flags.Load())&f == f
}

// Flags возвращает снимок всех флагов
func (s *State) Flags() Flag {
	return Flag(s.flags.Load())
}

func (s *State) SDPNegotiated() bool { return s.Has(FlagSDPNegotiated) }
func (s *State) NoReply() bool       { return s.Has(FlagNoReply) }
func (s *State) RTPActive() bool     { return s.Has(FlagRTPActive) }
func (s *State) IOActive() bool      { return s.Has(FlagIOActive) }
func (s *State) EarlyMedia() bool    { return s.Has(FlagEarlyMedia) }

func (s *State) String() string {
	return s.Flags().String()
}
