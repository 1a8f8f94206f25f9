// Package manager_media реализует медиа слой для media_sdp: разбирает SDP через
// pion/sdp, выбирает общие кодеки, выделяет RTP порты и поднимает UDP транспорт.
package manager_media

import (
	"fmt"
	"log/slog"
	"net"
)

// MediaStreamInfo информация о медиа потоке из SDP
type MediaStreamInfo struct {
	Type         string            // Тип медиа (audio, video, application)
	Port         int               // RTP порт
	Protocol     string            // Протокол (RTP/AVP, RTP/SAVP, etc.)
	PayloadTypes []PayloadTypeInfo // Поддерживаемые payload типы
	Direction    MediaDirection    // Направление медиа потока
	SSRC         uint32            // SSRC для потока (если указан)
}

// PayloadTypeInfo информация о payload типе
type PayloadTypeInfo struct {
	Type      uint8  // Номер payload типа
	Name      string // Название кодека
	ClockRate uint32 // Частота дискретизации
	Channels  uint8  // Количество каналов (для аудио)
}

// MediaDirection направление медиа потока
type MediaDirection int

const (
	DirectionSendRecv MediaDirection = iota // sendrecv
	DirectionSendOnly                       // sendonly
	DirectionRecvOnly                       // recvonly
	DirectionInactive                       // inactive
)

func (d MediaDirection) String() string {
	switch d {
	case DirectionSendRecv:
		return "sendrecv"
	case DirectionSendOnly:
		return "sendonly"
	case DirectionRecvOnly:
		return "recvonly"
	case DirectionInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// answer возвращает направление ответа на предложенное направление (RFC 3264)
func (d MediaDirection) answer() MediaDirection {
	switch d {
	case DirectionSendOnly:
		return DirectionRecvOnly
	case DirectionRecvOnly:
		return DirectionSendOnly
	default:
		return d
	}
}

// SessionState состояние медиа сессии
type SessionState int

const (
	SessionStateIdle       SessionState = iota // Создана, но не согласована
	SessionStateNegotiated                     // SDP согласован
	SessionStateActive                         // Транспорт активен
	SessionStateClosed                         // Закрыта
)

func (s SessionState) String() string {
	switch s {
	case SessionStateIdle:
		return "idle"
	case SessionStateNegotiated:
		return "negotiated"
	case SessionStateActive:
		return "active"
	case SessionStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SessionStatistics статистика медиа сессии
type SessionStatistics struct {
	SessionID       string       // ID сессии
	State           SessionState // Текущее состояние
	LocalAddress    string       // Локальный адрес RTP
	RemoteAddress   string       // Удаленный адрес RTP
	Codec           string       // Выбранный кодек
	PacketsSent     uint64
	PacketsReceived uint64
	BytesSent       uint64
	BytesReceived   uint64
}

// PortRange диапазон портов
type PortRange struct {
	Min int // Минимальный порт
	Max int // Максимальный порт
}

// ManagerConfig конфигурация медиа менеджера
type ManagerConfig struct {
	// Сетевые настройки
	LocalIP      string    // IP адрес для RTP сокетов и c= строки ответа
	RTPPortRange PortRange // Диапазон портов для RTP (RTCP занимает порт+1)
	DSCP         int       // DSCP маркировка RTP пакетов (0 - не устанавливать)

	// Аудио настройки
	AudioCodecs []string // Поддерживаемые кодеки в порядке предпочтения
	Ptime       int      // Packet time (мс)

	Logger *slog.Logger

	// Обработчики событий
	OnRTPPacket     func(sessionID string, payloadType uint8, payload []byte) // Получен RTP пакет
	OnSessionClosed func(sessionID string)                                    // Сессия закрыта
}

// DSCPExpeditedForwarding EF класс для голоса (RFC 3246)
const DSCPExpeditedForwarding = 46

// DefaultManagerConfig возвращает конфигурацию по умолчанию
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		LocalIP: "127.0.0.1",
		RTPPortRange: PortRange{
			Min: 16384,
			Max: 32768,
		},
		DSCP:        DSCPExpeditedForwarding,
		AudioCodecs: []string{"PCMU", "PCMA", "G722"},
		Ptime:       20,
	}
}

// Validate проверяет корректность конфигурации
func (c *ManagerConfig) Validate() error {
	if net.ParseIP(c.LocalIP) == nil {
		return fmt.Errorf("некорректный LocalIP: %q", c.LocalIP)
	}
	if len(c.AudioCodecs) == 0 {
		return fmt.Errorf("список AudioCodecs пуст")
	}
	if c.DSCP < 0 || c.DSCP > 63 {
		return fmt.Errorf("DSCP вне диапазона 0-63: %d", c.DSCP)
	}
	if c.Ptime <= 0 {
		return fmt.Errorf("Ptime должен быть положительным: %d", c.Ptime)
	}
	return nil
}
