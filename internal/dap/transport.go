// Package dap implements the editor-facing side of the Debug Adapter
// Protocol: the Content-Length framed codec and the request dispatch loop
// that drives an adapter session.
package dap

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// MaxContentLength bounds inbound message bodies (10MB).
const MaxContentLength = 10 * 1024 * 1024

// Transport carries framed protocol messages to and from the editor.
type Transport interface {
	// Send writes one message.
	Send(content json.RawMessage) error

	// Receive reads the next message.
	Receive() (json.RawMessage, error)

	// Close closes the transport.
	Close() error
}

// StreamTransport frames messages over a reader/writer pair. Sends are
// serialized; Receive is called from a single goroutine.
type StreamTransport struct {
	reader *bufio.Reader
	writer io.Writer
	closer io.Closer
	mu     sync.Mutex
}

// NewStdioTransport frames messages over the process's stdin and stdout.
// Stdout belongs to the protocol; logging goes elsewhere.
func NewStdioTransport() *StreamTransport {
	return &StreamTransport{
		reader: bufio.NewReader(os.Stdin),
		writer: os.Stdout,
		closer: os.Stdin,
	}
}

// NewStreamTransport frames messages over an arbitrary connection.
func NewStreamTransport(rwc io.ReadWriteCloser) *StreamTransport {
	return &StreamTransport{
		reader: bufio.NewReader(rwc),
		writer: rwc,
		closer: rwc,
	}
}

// Send writes one framed message.
func (t *StreamTransport) Send(content json.RawMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(content))
	if _, err := io.WriteString(t.writer, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := t.writer.Write(content); err != nil {
		return fmt.Errorf("write content: %w", err)
	}
	return nil
}

// Receive reads one framed message.
func (t *StreamTransport) Receive() (json.RawMessage, error) {
	contentLength := 0
	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}

		name, value, ok := strings.Cut(line, ": ")
		if !ok {
			return nil, fmt.Errorf("invalid header: %s", line)
		}
		if strings.EqualFold(name, "content-length") {
			length, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid content-length: %w", err)
			}
			if length <= 0 || length > MaxContentLength {
				return nil, fmt.Errorf("content-length %d out of range", length)
			}
			contentLength = length
		}
	}

	if contentLength == 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}
	content := make([]byte, contentLength)
	if _, err := io.ReadFull(t.reader, content); err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	return content, nil
}

// Close closes the underlying connection.
func (t *StreamTransport) Close() error {
	return t.closer.Close()
}
