package manager_media

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/sdp/v3"

	"github.com/arzzra/leg_media/pkg/media_sdp"
)

// mediaSession состояние медиа одной сигнальной сессии
type mediaSession struct {
	mutex sync.Mutex

	id        string
	state     SessionState
	createdAt time.Time

	remoteSDP    string
	remoteOrigin sdp.Origin
	hasOrigin    bool
	localOrigin  sdp.Origin

	stream     MediaStreamInfo
	codecs     []PayloadTypeInfo
	voice      PayloadTypeInfo // основной кодек передачи
	direction  MediaDirection
	remoteAddr *net.UDPAddr

	ports     map[media_sdp.MediaType]int
	transport *udpTransport
}

// MediaManager медиа слой для media_sdp.Leg
type MediaManager struct {
	config        ManagerConfig
	sessions      map[string]*mediaSession
	sessionsMutex sync.RWMutex
	portManager   *portManager
	logger        *slog.Logger
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

var _ media_sdp.MediaLayer = (*MediaManager)(nil)

// NewMediaManager создает новый медиа менеджер
func NewMediaManager(config ManagerConfig) (*MediaManager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("невалидная конфигурация: %w", err)
	}

	portMgr, err := newPortManager(config.RTPPortRange)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания менеджера портов: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &MediaManager{
		config:      config,
		sessions:    make(map[string]*mediaSession),
		portManager: portMgr,
		logger:      logger.With(slog.String("component", "media_manager")),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// getOrCreate возвращает состояние сессии, создавая его при первом обращении
func (mm *MediaManager) getOrCreate(sessionID string) *mediaSession {
	mm.sessionsMutex.Lock()
	defer mm.sessionsMutex.Unlock()

	ms, exists := mm.sessions[sessionID]
	if !exists {
		ms = &mediaSession{
			id:        sessionID,
			state:     SessionStateIdle,
			createdAt: time.Now(),
			ports:     make(map[media_sdp.MediaType]int),
			localOrigin: sdp.Origin{
				Username:       "-",
				SessionID:      uint64(time.Now().UnixNano()),
				SessionVersion: 1,
				NetworkType:    "IN",
				AddressType:    "IP4",
				UnicastAddress: mm.config.LocalIP,
			},
		}
		if ip := net.ParseIP(mm.config.LocalIP); ip != nil && ip.To4() == nil {
			ms.localOrigin.AddressType = "IP6"
		}
		mm.sessions[sessionID] = ms
	}
	return ms
}

func (mm *MediaManager) get(sessionID string) (*mediaSession, error) {
	mm.sessionsMutex.RLock()
	defer mm.sessionsMutex.RUnlock()

	ms, exists := mm.sessions[sessionID]
	if !exists {
		return nil, fmt.Errorf("сессия %s не найдена", sessionID)
	}
	return ms, nil
}

// NegotiateSDP разбирает удаленный SDP и выбирает общие аудио кодеки.
//
// Повторное предложение с теми же o= session id и версией принимается без
// ответа (shouldReply=false): оно уже было обработано.
func (mm *MediaManager) NegotiateSDP(ctx context.Context, session media_sdp.Session, remoteSDP string, kind media_sdp.SDPType) (bool, bool) {
	logger := mm.logger.With(slog.String("session_id", session.ID()), slog.String("kind", kind.String()))

	if mm.ctx.Err() != nil || ctx.Err() != nil {
		logger.Warn("Согласование после остановки")
		return false, true
	}

	desc, err := parseSDP(remoteSDP)
	if err != nil {
		logger.Warn("Некорректный SDP", slog.String("error", err.Error()))
		return false, true
	}

	ms := mm.getOrCreate(session.ID())
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	if kind == media_sdp.SDPTypeOffer && ms.hasOrigin && ms.state != SessionStateIdle &&
		sameOrigin(ms.remoteOrigin, desc.Origin) {
		logger.Debug("Повторное предложение, ответ не требуется",
			slog.Uint64("sdp_session_id", desc.Origin.SessionID),
			slog.Uint64("sdp_version", desc.Origin.SessionVersion))
		return true, false
	}

	streams := extractMediaStreams(desc)
	index := findAudioStream(streams)
	if index < 0 {
		logger.Info("В SDP нет активного аудио потока")
		return false, true
	}
	stream := streams[index]

	codecs := intersectCodecs(stream.PayloadTypes, mm.config.AudioCodecs)
	voice, ok := voiceCodec(codecs)
	if !ok {
		logger.Info("Нет общих кодеков", slog.Any("remote", payloadNames(stream.PayloadTypes)))
		return false, true
	}

	remoteAddr, err := extractRemoteAddress(desc, index)
	if err != nil {
		logger.Warn("Не удалось определить удаленный адрес", slog.String("error", err.Error()))
		return false, true
	}

	if ms.hasOrigin {
		ms.localOrigin.SessionVersion++
	}
	ms.remoteSDP = remoteSDP
	ms.remoteOrigin = desc.Origin
	ms.hasOrigin = true
	ms.stream = stream
	ms.codecs = codecs
	ms.voice = voice
	ms.direction = stream.Direction.answer()
	ms.remoteAddr = remoteAddr
	if ms.state == SessionStateIdle {
		ms.state = SessionStateNegotiated
	}

	if ms.transport != nil {
		ms.transport.update(remoteAddr, voice.Type)
	}

	logger.Debug("SDP согласован",
		slog.String("remote_addr", remoteAddr.String()),
		slog.Any("codecs", payloadNames(codecs)),
		slog.String("direction", ms.direction.String()))

	return true, true
}

// ChoosePort выделяет локальный RTP порт для типа медиа.
// Уже выделенный порт сохраняется (re-INVITE).
func (mm *MediaManager) ChoosePort(ctx context.Context, session media_sdp.Session, mediaType media_sdp.MediaType) error {
	ms, err := mm.get(session.ID())
	if err != nil {
		return err
	}

	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	if ms.state == SessionStateIdle || ms.state == SessionStateClosed {
		return fmt.Errorf("сессия %s в состоянии %s, выбор порта невозможен", ms.id, ms.state)
	}

	if _, ok := ms.ports[mediaType]; ok {
		return nil
	}

	port, err := mm.portManager.AllocatePort()
	if err != nil {
		return fmt.Errorf("ошибка выделения порта: %w", err)
	}
	ms.ports[mediaType] = port

	mm.logger.Debug("Выделен порт",
		slog.String("session_id", ms.id),
		slog.String("media", mediaType.String()),
		slog.Int("port", port))

	return nil
}

// ActivateTransport открывает RTP сокет на выбранном аудио порту и запускает прием.
// Для уже активной сессии обновляет удаленный адрес.
func (mm *MediaManager) ActivateTransport(ctx context.Context, session media_sdp.Session) error {
	ms, err := mm.get(session.ID())
	if err != nil {
		return err
	}

	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	if ms.state == SessionStateClosed {
		return fmt.Errorf("сессия %s закрыта", ms.id)
	}
	if len(ms.codecs) == 0 || ms.remoteAddr == nil {
		return fmt.Errorf("сессия %s не согласована", ms.id)
	}

	if ms.transport != nil {
		ms.transport.update(ms.remoteAddr, ms.voice.Type)
		return nil
	}

	port, ok := ms.ports[media_sdp.MediaTypeAudio]
	if !ok {
		return fmt.Errorf("для сессии %s не выбран аудио порт", ms.id)
	}

	conn, err := listenUDP(ctx, mm.config.LocalIP, port, mm.config.DSCP)
	if err != nil {
		return err
	}

	transport := newUDPTransport(conn, ms.remoteAddr, ms.voice.Type)
	ms.transport = transport
	ms.state = SessionStateActive

	sessionID := ms.id
	onPacket := mm.config.OnRTPPacket
	mm.wg.Add(1)
	go func() {
		defer mm.wg.Done()
		transport.readLoop(func(packet *rtp.Packet) {
			if onPacket != nil {
				onPacket(sessionID, packet.PayloadType, packet.Payload)
			}
		})
	}()

	mm.logger.Info("RTP транспорт активирован",
		slog.String("session_id", sessionID),
		slog.String("local_addr", conn.LocalAddr().String()),
		slog.String("remote_addr", ms.remoteAddr.String()))

	return nil
}

// LocalSDP возвращает SDP ответ для согласованной сессии
func (mm *MediaManager) LocalSDP(sessionID string) (string, error) {
	ms, err := mm.get(sessionID)
	if err != nil {
		return "", err
	}

	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	if ms.state == SessionStateIdle || ms.state == SessionStateClosed {
		return "", fmt.Errorf("сессия %s в состоянии %s", sessionID, ms.state)
	}

	port, ok := ms.ports[media_sdp.MediaTypeAudio]
	if !ok {
		return "", fmt.Errorf("для сессии %s не выбран аудио порт", sessionID)
	}

	desc := buildAnswerSDP(mm.config.LocalIP, port, ms.localOrigin, ms.codecs, ms.direction, mm.config.Ptime)
	data, err := desc.Marshal()
	if err != nil {
		return "", fmt.Errorf("ошибка маршалинга SDP: %w", err)
	}
	return string(data), nil
}

// SendRTP отправляет payload первым согласованным кодеком.
// samples - длительность payload в отсчетах частоты кодека.
func (mm *MediaManager) SendRTP(sessionID string, payload []byte, samples uint32, marker bool) error {
	ms, err := mm.get(sessionID)
	if err != nil {
		return err
	}

	ms.mutex.Lock()
	transport := ms.transport
	ms.mutex.Unlock()

	if transport == nil {
		return fmt.Errorf("транспорт сессии %s не активен", sessionID)
	}
	return transport.send(payload, samples, marker)
}

// Statistics возвращает статистику сессии
func (mm *MediaManager) Statistics(sessionID string) (*SessionStatistics, error) {
	ms, err := mm.get(sessionID)
	if err != nil {
		return nil, err
	}

	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	stats := &SessionStatistics{
		SessionID: sessionID,
		State:     ms.state,
	}
	if len(ms.codecs) > 0 {
		stats.Codec = ms.voice.Name
	}
	if ms.remoteAddr != nil {
		stats.RemoteAddress = ms.remoteAddr.String()
	}
	if t := ms.transport; t != nil {
		stats.LocalAddress = t.LocalAddr().String()
		stats.PacketsSent = t.packetsSent.Load()
		stats.PacketsReceived = t.packetsReceived.Load()
		stats.BytesSent = t.bytesSent.Load()
		stats.BytesReceived = t.bytesReceived.Load()
	}
	return stats, nil
}

// ListSessions возвращает отсортированный список сессий
func (mm *MediaManager) ListSessions() []string {
	mm.sessionsMutex.RLock()
	defer mm.sessionsMutex.RUnlock()

	sessions := make([]string, 0, len(mm.sessions))
	for sessionID := range mm.sessions {
		sessions = append(sessions, sessionID)
	}
	sort.Strings(sessions)
	return sessions
}

// CloseSession закрывает транспорт и освобождает порты сессии
func (mm *MediaManager) CloseSession(sessionID string) error {
	mm.sessionsMutex.Lock()
	ms, exists := mm.sessions[sessionID]
	delete(mm.sessions, sessionID)
	mm.sessionsMutex.Unlock()

	if !exists {
		return fmt.Errorf("сессия %s не найдена", sessionID)
	}

	mm.cleanup(ms)

	if mm.config.OnSessionClosed != nil {
		mm.config.OnSessionClosed(sessionID)
	}
	return nil
}

// Stop закрывает все сессии и дожидается завершения приема
func (mm *MediaManager) Stop() error {
	mm.cancel()

	mm.sessionsMutex.Lock()
	sessions := mm.sessions
	mm.sessions = make(map[string]*mediaSession)
	mm.sessionsMutex.Unlock()

	for sessionID, ms := range sessions {
		mm.cleanup(ms)
		if mm.config.OnSessionClosed != nil {
			mm.config.OnSessionClosed(sessionID)
		}
	}

	mm.wg.Wait()
	return nil
}

// cleanup очищает ресурсы сессии
func (mm *MediaManager) cleanup(ms *mediaSession) {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	if ms.transport != nil {
		if err := ms.transport.Close(); err != nil {
			mm.logger.Warn("Ошибка закрытия RTP сокета",
				slog.String("session_id", ms.id),
				slog.String("error", err.Error()))
		}
		ms.transport = nil
	}

	for mediaType, port := range ms.ports {
		mm.portManager.ReleasePort(port)
		delete(ms.ports, mediaType)
	}

	ms.state = SessionStateClosed
}

func sameOrigin(a, b sdp.Origin) bool {
	return a.Username == b.Username &&
		a.SessionID == b.SessionID &&
		a.SessionVersion == b.SessionVersion &&
		a.UnicastAddress == b.UnicastAddress
}

func payloadNames(codecs []PayloadTypeInfo) []string {
	names := make([]string, 0, len(codecs))
	for _, c := range codecs {
		names = append(names, c.Name)
	}
	return names
}
