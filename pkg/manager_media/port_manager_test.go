package manager_media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPortManagerValidation(t *testing.T) {
	tests := []struct {
		name    string
		r       PortRange
		wantErr bool
	}{
		{"valid", PortRange{Min: 10000, Max: 10010}, false},
		{"odd min is rounded up", PortRange{Min: 10001, Max: 10003}, false},
		{"zero min", PortRange{Min: 0, Max: 100}, true},
		{"above 65535", PortRange{Min: 65000, Max: 70000}, true},
		{"no pair", PortRange{Min: 10000, Max: 10000}, true},
		{"odd min without pair", PortRange{Min: 10001, Max: 10002}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newPortManager(tt.r)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAllocateEvenPorts(t *testing.T) {
	pm, err := newPortManager(PortRange{Min: 10001, Max: 10008})
	require.NoError(t, err)

	// Пары: 10002/3, 10004/5, 10006/7
	assert.Equal(t, 3, pm.AvailablePortsCount())

	var ports []int
	for i := 0; i < 3; i++ {
		port, err := pm.AllocatePort()
		require.NoError(t, err)
		ports = append(ports, port)
	}
	assert.Equal(t, []int{10002, 10004, 10006}, ports)
	assert.Equal(t, 3, pm.UsedPortsCount())
	assert.Equal(t, 0, pm.AvailablePortsCount())

	_, err = pm.AllocatePort()
	assert.Error(t, err)

	pm.ReleasePort(10004)
	assert.False(t, pm.IsPortUsed(10004))

	port, err := pm.AllocatePort()
	require.NoError(t, err)
	assert.Equal(t, 10004, port)
	assert.True(t, pm.IsPortUsed(10004))
}
