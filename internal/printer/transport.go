// Package printer drives a thermal receipt printer over raw TCP (JetDirect
// port 9100). The connection is kept open between jobs and dropped on any
// error, so the next attempt starts from a fresh dial.
package printer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/printrelay/printrelay/internal/jobs"
	"github.com/printrelay/printrelay/internal/logger"
	"github.com/printrelay/printrelay/internal/metrics"
)

const (
	DefaultPort        = 9100
	DefaultDialTimeout = 3 * time.Second
)

var (
	ErrNotConfigured = errors.New("printer address not configured")
	ErrOffline       = errors.New("printer offline")
)

// statusRequest is the DLE EOT n real-time transmit-status command; the
// printer answers with a single status byte even mid-job.
var statusRequest = []byte{0x10, 0x04, 0x01}

// Transport sends raw command buffers to one printer. Send failures are
// classified transient: a dead or busy device is expected to come back,
// and the retry budget bounds how long we keep believing that.
type Transport struct {
	addr        string
	dialTimeout time.Duration

	mu   sync.Mutex
	conn net.Conn
}

func NewTransport(addr string, dialTimeout time.Duration) *Transport {
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	return &Transport{addr: addr, dialTimeout: dialTimeout}
}

// Send writes one command buffer to the device, honoring the context
// deadline for both dial and write.
func (t *Transport) Send(ctx context.Context, raw []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	conn, err := t.connect(ctx)
	if err != nil {
		metrics.PrinterUp.Set(0)
		return jobs.Transient(err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}

	if _, err := conn.Write(raw); err != nil {
		t.drop()
		metrics.PrinterUp.Set(0)
		return jobs.Transient(fmt.Errorf("write to printer: %w", err))
	}

	metrics.PrinterUp.Set(1)
	return nil
}

// Ping asks the device for its real-time status. Used by the readiness
// probe; a paper-out or cover-open response reports the printer offline.
func (t *Transport) Ping(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	conn, err := t.connect(ctx)
	if err != nil {
		metrics.PrinterUp.Set(0)
		return err
	}

	deadline := time.Now().Add(t.dialTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	if _, err := conn.Write(statusRequest); err != nil {
		t.drop()
		metrics.PrinterUp.Set(0)
		return fmt.Errorf("status request: %w", err)
	}

	status := make([]byte, 1)
	if _, err := conn.Read(status); err != nil {
		t.drop()
		metrics.PrinterUp.Set(0)
		return fmt.Errorf("status response: %w", err)
	}

	// Bit 3 of the first status byte signals offline.
	if status[0]&0x08 != 0 {
		metrics.PrinterUp.Set(0)
		return ErrOffline
	}

	metrics.PrinterUp.Set(1)
	return nil
}

func (t *Transport) connect(ctx context.Context) (net.Conn, error) {
	if t.addr == "" {
		return nil, ErrNotConfigured
	}
	if t.conn != nil {
		return t.conn, nil
	}

	dialer := net.Dialer{Timeout: t.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return nil, fmt.Errorf("dial printer %s: %w", t.addr, err)
	}

	logger.WithComponent("printer").Info().Str("addr", t.addr).Msg("Printer connected")
	t.conn = conn
	return conn, nil
}

func (t *Transport) drop() {
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
}

// Close releases the connection.
func (t *Transport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.drop()
}
