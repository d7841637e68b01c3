package replication

import (
	"bufio"
	"net"
	"sync"
	"time"
)

// Conn wraps one net.Conn carrying a single ordered replication stream:
// a Main's registration for one replica, or a replica's connection to its
// Main. Unlike the teacher's ClusterConnection, there is no concurrent RPC
// multiplexing — replication traffic on a given connection is inherently
// sequential (one transaction's delta stream at a time), so send/receive
// just take turns under a single mutex pair.
type Conn struct {
	netConn net.Conn
	reader  *bufio.Reader
	writer  *bufio.Writer

	writeMu sync.Mutex
	readMu  sync.Mutex

	cfg    Config
	secret []byte
}

// NewConn wraps an already-established net.Conn.
func NewConn(netConn net.Conn, cfg Config) *Conn {
	cfg = cfg.withDefaults()
	var secret []byte
	if cfg.ReplicationSecret != "" {
		secret = []byte(cfg.ReplicationSecret)
	}
	return &Conn{
		netConn: netConn,
		reader:  bufio.NewReader(netConn),
		writer:  bufio.NewWriter(netConn),
		cfg:     cfg,
		secret:  secret,
	}
}

// Dial connects to addr and wraps the resulting connection.
func Dial(addr string, cfg Config) (*Conn, error) {
	cfg = cfg.withDefaults()
	d := net.Dialer{Timeout: cfg.DialTimeout}
	netConn, err := d.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewConn(netConn, cfg), nil
}

// Send signs and writes msg, flushing immediately (replication messages are
// not batched at this layer; durability.Writer already batches on disk).
func (c *Conn) Send(msg *Message) error {
	signMessage(c.secret, c.cfg.NodeID, msg)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.netConn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := writeMessage(c.writer, msg); err != nil {
		return err
	}
	return c.writer.Flush()
}

// Receive reads and authenticates the next message.
func (c *Conn) Receive() (*Message, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	c.netConn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	msg, err := readMessage(c.reader, c.cfg.MaxMsgSize)
	if err != nil {
		return nil, err
	}
	if err := verifyMessage(c.secret, c.cfg.AuthMaxSkew, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Close closes the underlying connection; on a Conn with no connection it
// returns ErrNotConnected.
func (c *Conn) Close() error {
	if c == nil || c.netConn == nil {
		return ErrNotConnected
	}
	return c.netConn.Close()
}

// RemoteAddr reports the peer address for logging.
func (c *Conn) RemoteAddr() string {
	if c.netConn == nil {
		return ""
	}
	return c.netConn.RemoteAddr().String()
}
