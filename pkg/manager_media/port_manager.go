package manager_media

import (
	"fmt"
	"sync"
)

// portManager выделяет четные RTP порты. Нечетный порт+1 резервируется под RTCP.
type portManager struct {
	portRange PortRange
	usedPorts map[int]bool
	mutex     sync.RWMutex
	nextPort  int
}

// newPortManager создает новый менеджер портов
func newPortManager(portRange PortRange) (*portManager, error) {
	if portRange.Min <= 0 || portRange.Max > 65535 {
		return nil, fmt.Errorf("некорректный диапазон портов: %d-%d", portRange.Min, portRange.Max)
	}

	// Первый четный порт диапазона
	if portRange.Min%2 != 0 {
		portRange.Min++
	}

	if portRange.Min+1 > portRange.Max {
		return nil, fmt.Errorf("в диапазоне нет ни одной пары RTP/RTCP: %d-%d", portRange.Min, portRange.Max)
	}

	return &portManager{
		portRange: portRange,
		usedPorts: make(map[int]bool),
		nextPort:  portRange.Min,
	}, nil
}

// lastPort последний четный порт, для которого помещается пара
func (pm *portManager) lastPort() int {
	last := pm.portRange.Max - 1
	if last%2 != 0 {
		last--
	}
	return last
}

func (pm *portManager) advance() {
	pm.nextPort += 2
	if pm.nextPort > pm.lastPort() {
		pm.nextPort = pm.portRange.Min
	}
}

// AllocatePort выделяет свободный четный порт
func (pm *portManager) AllocatePort() (int, error) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	startPort := pm.nextPort
	for {
		port := pm.nextPort
		pm.advance()

		if !pm.usedPorts[port] {
			pm.usedPorts[port] = true
			return port, nil
		}

		// Полный круг, все порты заняты
		if pm.nextPort == startPort {
			return 0, fmt.Errorf("все порты в диапазоне %d-%d заняты", pm.portRange.Min, pm.portRange.Max)
		}
	}
}

// ReleasePort освобождает порт
func (pm *portManager) ReleasePort(port int) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	delete(pm.usedPorts, port)
}

// IsPortUsed проверяет, используется ли порт
func (pm *portManager) IsPortUsed(port int) bool {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	return pm.usedPorts[port]
}

// UsedPortsCount возвращает количество используемых портов
func (pm *portManager) UsedPortsCount() int {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	return len(pm.usedPorts)
}

// AvailablePortsCount возвращает количество доступных портов
func (pm *portManager) AvailablePortsCount() int {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	total := (pm.lastPort()-pm.portRange.Min)/2 + 1
	return total - len(pm.usedPorts)
}
