package radio

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// TCPTransport talks to the serial bridge over a TCP socket, one
// newline-terminated command per send.
type TCPTransport struct {
	mu   sync.Mutex
	conn net.Conn
}

const writeTimeout = 200 * time.Millisecond

// Dial connects to the serial bridge.
func Dial(addr string) (*TCPTransport, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing radio bridge %s: %w", addr, err)
	}
	return &TCPTransport{conn: conn}, nil
}

func (t *TCPTransport) Send(cmd string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	_, err := fmt.Fprintln(t.conn, cmd)
	return err
}

func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.Close()
}
