// Package console is a communicator that prints payloads to a writer.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sweeney/sensor-gateway/internal/device"
)

// Prefix starts every line written.
const Prefix = "[CONSOLE] "

// Channel is reported in every Response.
const Channel = "console"

// Communicator writes one "[CONSOLE] <payload>" line per reading.
type Communicator struct {
	mu      sync.Mutex
	w       io.Writer
	gateway string
}

// New creates a console communicator. A nil writer means stdout.
func New(w io.Writer, gateway string) *Communicator {
	if w == nil {
		w = os.Stdout
	}
	return &Communicator{w: w, gateway: gateway}
}

// Send formats r and writes it.
func (c *Communicator) Send(ctx context.Context, r device.Reading) (device.Response, error) {
	if err := ctx.Err(); err != nil {
		return device.Response{}, err
	}
	payload, err := device.FormatPayload(c.gateway, r)
	if err != nil {
		return device.Response{}, fmt.Errorf("console: %w: %v", device.ErrSend, err)
	}
	c.mu.Lock()
	_, err = fmt.Fprintf(c.w, "%s%s\n", Prefix, payload)
	c.mu.Unlock()
	if err != nil {
		return device.Response{}, fmt.Errorf("console: %w: %v", device.ErrSend, err)
	}
	return device.Response{Channel: Channel, Payload: payload}, nil
}

// Receive is not supported on the console.
func (c *Communicator) Receive(ctx context.Context) (device.Response, error) {
	return device.Response{}, fmt.Errorf("console receive: %w", device.ErrUnsupported)
}
