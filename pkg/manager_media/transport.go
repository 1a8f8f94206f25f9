package manager_media

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/pion/rtp"
)

const (
	// MinRTPPacketSize минимальный размер RTP заголовка
	MinRTPPacketSize = 12
	// MaxRTPPacketSize максимальный размер пакета (MTU)
	MaxRTPPacketSize = 1500
)

// udpTransport RTP транспорт поверх одного UDP сокета
type udpTransport struct {
	conn net.PacketConn

	mutex       sync.Mutex
	remoteAddr  *net.UDPAddr
	payloadType uint8
	sequence    uint16
	timestamp   uint32
	ssrc        uint32

	packetsSent     atomic.Uint64
	packetsReceived atomic.Uint64
	bytesSent       atomic.Uint64
	bytesReceived   atomic.Uint64
}

// listenUDP открывает UDP сокет с DSCP маркировкой (dscp == 0 - без маркировки)
func listenUDP(ctx context.Context, localIP string, port, dscp int) (net.PacketConn, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			if dscp == 0 {
				return nil
			}
			var sockErr error
			if err := c.Control(func(fd uintptr) {
				sockErr = setSockOptDSCP(int(fd), dscp)
			}); err != nil {
				return err
			}
			return sockErr
		},
	}

	conn, err := lc.ListenPacket(ctx, "udp", net.JoinHostPort(localIP, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания UDP соединения: %w", err)
	}
	return conn, nil
}

func newUDPTransport(conn net.PacketConn, remoteAddr *net.UDPAddr, payloadType uint8) *udpTransport {
	return &udpTransport{
		conn:        conn,
		remoteAddr:  remoteAddr,
		payloadType: payloadType,
		sequence:    uint16(rand.Uint32()),
		timestamp:   rand.Uint32(),
		ssrc:        rand.Uint32(),
	}
}

// LocalAddr локальный адрес сокета
func (t *udpTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// update меняет удаленный адрес и payload type после повторного согласования
func (t *udpTransport) update(remoteAddr *net.UDPAddr, payloadType uint8) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.remoteAddr = remoteAddr
	t.payloadType = payloadType
}

// send упаковывает payload в RTP пакет и отправляет его.
// samples - длительность payload в отсчетах, на нее сдвигается timestamp.
func (t *udpTransport) send(payload []byte, samples uint32, marker bool) error {
	t.mutex.Lock()
	packet := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         marker,
			PayloadType:    t.payloadType,
			SequenceNumber: t.sequence,
			Timestamp:      t.timestamp,
			SSRC:           t.ssrc,
		},
		Payload: payload,
	}
	t.sequence++
	t.timestamp += samples
	remoteAddr := t.remoteAddr
	t.mutex.Unlock()

	if remoteAddr == nil {
		return fmt.Errorf("удаленный адрес не установлен")
	}

	data, err := packet.Marshal()
	if err != nil {
		return fmt.Errorf("ошибка маршалинга RTP пакета: %w", err)
	}
	if len(data) > MaxRTPPacketSize {
		return fmt.Errorf("пакет слишком велик: %d байт (максимум %d)", len(data), MaxRTPPacketSize)
	}

	if _, err := t.conn.WriteTo(data, remoteAddr); err != nil {
		return fmt.Errorf("ошибка отправки RTP: %w", err)
	}

	t.packetsSent.Add(1)
	t.bytesSent.Add(uint64(len(data)))
	return nil
}

// readLoop читает RTP пакеты до закрытия сокета
func (t *udpTransport) readLoop(onPacket func(packet *rtp.Packet)) {
	buf := make([]byte, MaxRTPPacketSize)
	for {
		n, _, err := t.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		if n < MinRTPPacketSize {
			continue
		}

		packet := &rtp.Packet{}
		if err := packet.Unmarshal(buf[:n]); err != nil || packet.Version != 2 {
			continue
		}

		t.packetsReceived.Add(1)
		t.bytesReceived.Add(uint64(n))

		if onPacket != nil {
			// Payload ссылается на buf, копируем
			payload := make([]byte, len(packet.Payload))
			copy(payload, packet.Payload)
			packet.Payload = payload
			onPacket(packet)
		}
	}
}

// Close закрывает сокет, readLoop завершается
func (t *udpTransport) Close() error {
	return t.conn.Close()
}
