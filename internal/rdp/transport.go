package rdp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
)

// Transport moves raw protocol packets to and from the debugger server.
type Transport interface {
	// Send writes one packet.
	Send(packet json.RawMessage) error

	// Receive reads the next packet.
	Receive() (json.RawMessage, error)

	// Close closes the transport.
	Close() error
}

// MaxPacketLength is the maximum accepted packet size (16MB).
const MaxPacketLength = 16 * 1024 * 1024

// SocketTransport implements Transport over a TCP connection to the
// debugger server's listening port.
type SocketTransport struct {
	conn   net.Conn
	reader *bufio.Reader
	mu     sync.Mutex
}

// NewSocketTransport connects to the debugger server at the given address.
func NewSocketTransport(address string) (*SocketTransport, error) {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}

	return NewSocketTransportFromConn(conn), nil
}

// NewSocketTransportFromConn wraps an already established connection.
func NewSocketTransportFromConn(conn net.Conn) *SocketTransport {
	return &SocketTransport{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

// Send writes one packet.
func (t *SocketTransport) Send(packet json.RawMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return writePacket(t.conn, packet)
}

// Receive reads the next packet.
func (t *SocketTransport) Receive() (json.RawMessage, error) {
	return readPacket(t.reader)
}

// Close closes the connection.
func (t *SocketTransport) Close() error {
	return t.conn.Close()
}

// RawTransport wraps any io.ReadWriteCloser as a Transport.
type RawTransport struct {
	rwc    io.ReadWriteCloser
	reader *bufio.Reader
	mu     sync.Mutex
}

// NewRawTransport creates a transport from any ReadWriteCloser.
func NewRawTransport(rwc io.ReadWriteCloser) *RawTransport {
	return &RawTransport{
		rwc:    rwc,
		reader: bufio.NewReader(rwc),
	}
}

// Send writes one packet.
func (t *RawTransport) Send(packet json.RawMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return writePacket(t.rwc, packet)
}

// Receive reads the next packet.
func (t *RawTransport) Receive() (json.RawMessage, error) {
	return readPacket(t.reader)
}

// Close closes the underlying stream.
func (t *RawTransport) Close() error {
	return t.rwc.Close()
}

// writePacket frames a packet as "<length>:<json>".
func writePacket(w io.Writer, packet json.RawMessage) error {
	header := strconv.Itoa(len(packet)) + ":"

	if _, err := w.Write([]byte(header)); err != nil {
		return fmt.Errorf("write packet header: %w", err)
	}
	if _, err := w.Write(packet); err != nil {
		return fmt.Errorf("write packet body: %w", err)
	}

	return nil
}

// readPacket reads one "<length>:<json>" framed packet.
func readPacket(r *bufio.Reader) (json.RawMessage, error) {
	header, err := r.ReadString(':')
	if err != nil {
		return nil, fmt.Errorf("read packet header: %w", err)
	}

	length, err := strconv.Atoi(header[:len(header)-1])
	if err != nil {
		return nil, fmt.Errorf("%w: length %q", ErrInvalidPacket, header)
	}
	if length <= 0 || length > MaxPacketLength {
		return nil, fmt.Errorf("%w: length %d out of range (max %d)", ErrInvalidPacket, length, MaxPacketLength)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read packet body: %w", err)
	}

	return body, nil
}
