package ws

import "sync"

// Manager tracks device connections. A device holds at most one connection;
// a reconnect replaces and closes the previous one.
type Manager struct {
	mu          sync.Mutex
	connections map[int64]*Connection
}

// NewManager builds connection manager.
func NewManager() *Manager {
	return &Manager{connections: make(map[int64]*Connection)}
}

// Add registers a connection and closes any previous one of the same device.
func (m *Manager) Add(conn *Connection) {
	m.mu.Lock()
	previous := m.connections[conn.DeviceID()]
	m.connections[conn.DeviceID()] = conn
	m.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
}

// Remove unregisters conn if it is still the device's current connection.
func (m *Manager) Remove(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connections[conn.DeviceID()] == conn {
		delete(m.connections, conn.DeviceID())
	}
}

// Count returns the number of connected devices.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.connections)
}

// CloseAll disconnects every device.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	conns := make([]*Connection, 0, len(m.connections))
	for _, c := range m.connections {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
