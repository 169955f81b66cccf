// Package systemd talks to the service manager: unit state and restarts
// over D-Bus, readiness and watchdog pings over the notify socket.
package systemd

import (
	"context"

	"github.com/coreos/go-systemd/v22/dbus"
)

// DefaultUnit is the unit the node runs as.
const DefaultUnit = "effectnode.service"

// Manager handles systemd unit operations via D-Bus.
type Manager struct {
	conn *dbus.Conn
	unit string
}

// NewManager connects to the system bus, or the user bus when user is set.
func NewManager(ctx context.Context, unit string, user bool) (*Manager, error) {
	connect := dbus.NewSystemConnectionContext
	if user {
		connect = dbus.NewUserConnectionContext
	}
	conn, err := connect(ctx)
	if err != nil {
		return nil, err
	}
	if unit == "" {
		unit = DefaultUnit
	}
	return &Manager{conn: conn, unit: unit}, nil
}

// Unit returns the managed unit name.
func (m *Manager) Unit() string {
	return m.unit
}

// Status retrieves the ActiveState property of the unit.
func (m *Manager) Status(ctx context.Context) (string, error) {
	prop, err := m.conn.GetUnitPropertyContext(ctx, m.unit, "ActiveState")
	if err != nil {
		return "", err
	}
	state, _ := prop.Value.Value().(string)
	return state, nil
}

// Restart restarts the unit using the replace mode. When the node restarts
// itself the reply may never arrive, so the job result is not awaited.
func (m *Manager) Restart(ctx context.Context) error {
	_, err := m.conn.RestartUnitContext(ctx, m.unit, "replace", nil)
	return err
}

// Close cleanly closes the D-Bus connection.
func (m *Manager) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
}
