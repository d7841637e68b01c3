package replication

import (
	"fmt"
	"net"
)

// Listen binds addr (":0" for an ephemeral port) and returns the bound
// address; callers run Serve in a goroutine afterward to accept on it.
// Split from Serve so tests and cmd/graphd can learn the actual port
// before traffic starts flowing.
func (m *MainReplicator) Listen(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.listener = ln
	m.mu.Unlock()
	return ln.Addr().String(), nil
}

// Serve accepts connections on the listener established by Listen,
// handing each one to m.Accept, blocking until the listener is closed.
// Mirrors the teacher's ClusterTransport.Listen, scoped to the Main role.
func (m *MainReplicator) Serve(addr string) error {
	if _, err := m.Listen(addr); err != nil {
		return err
	}
	return m.acceptLoop()
}

func (m *MainReplicator) acceptLoop() error {
	m.mu.RLock()
	ln := m.listener
	m.mu.RUnlock()
	if ln == nil {
		return fmt.Errorf("replication: Serve called before Listen")
	}
	defer ln.Close()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if m.closed.Load() {
				return nil
			}
			continue
		}
		go func() {
			if err := m.Accept(conn); err != nil {
				m.logger.Printf("replica handshake failed from %s: %v", conn.RemoteAddr(), err)
			}
		}()
	}
}

// StopServing closes the listener started by Listen/Serve, if any.
func (m *MainReplicator) StopServing() {
	m.closed.Store(true)
	m.mu.Lock()
	if m.listener != nil {
		m.listener.Close()
	}
	m.mu.Unlock()
}
