package influxdb

import (
	"errors"
	"testing"

	"github.com/portmodel/cranelink/internal/infrastructure/config"
)

func TestConnectDisabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestCloseNil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v, want nil", err)
	}
}

func TestWriteDisconnected(t *testing.T) {
	// Writes on a disconnected client must be silent no-ops.
	c := &Client{}
	c.WriteBridgeCounters("crane-1", map[string]uint64{"lines_published": 1})
	c.WriteConnectivityEvent("crane-1", "broker_lost")
}
