// Package client runs one-off commands against a game server's RCON listener.
package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jsirianni/gamemetrics/internal/metrics"
	"github.com/leighmacdonald/rcon/rcon"
)

// DefaultTimeout is the default timeout for dialing and command execution.
const DefaultTimeout = 15 * time.Second

// Client executes RCON commands on a fresh connection per call.
type Client interface {
	Exec(ctx context.Context, command string) (string, error)
}

// Options configures the client.
type Options struct {
	// Address is the host:port of the RCON listener.
	Address  string
	Password string
	Timeout  time.Duration
	Recorder metrics.RCONRecorder
	// SingleCommand drops everything after the first ";". Source servers run
	// each ";" separated part as its own command. Leave it unset for Factorio,
	// where ";" is part of a Lua command.
	SingleCommand bool
}

// New creates a new RCON client.
func New(opts Options) Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &defaultClient{
		address:  opts.Address,
		password: opts.Password,
		timeout:  timeout,
		recorder: opts.Recorder,
		single:   opts.SingleCommand,
	}
}

type defaultClient struct {
	address  string
	password string
	timeout  time.Duration
	recorder metrics.RCONRecorder
	single   bool
}

var _ Client = (*defaultClient)(nil)

// Exec dials, authenticates, runs command and returns the raw reply.
func (c *defaultClient) Exec(ctx context.Context, command string) (string, error) {
	start := time.Now()

	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	conn, err := rcon.Dial(dialCtx, c.address, c.password, c.timeout)
	if err != nil {
		c.record(ctx, metrics.OpConnect, metrics.ClassifyError(err), start)
		return "", fmt.Errorf("dial %s: %w", c.address, err)
	}
	defer conn.Close()
	c.record(ctx, metrics.OpConnect, metrics.ErrorNone, start)

	start = time.Now()
	resp, err := conn.Exec(c.command(command))
	if err != nil {
		c.record(ctx, metrics.OpExecute, metrics.ClassifyError(err), start)
		return "", fmt.Errorf("exec: %w", err)
	}
	c.record(ctx, metrics.OpExecute, metrics.ErrorNone, start)
	return resp, nil
}

func (c *defaultClient) record(ctx context.Context, op, errType string, start time.Time) {
	if c.recorder != nil {
		c.recorder.RecordRequest(ctx, op, errType, time.Since(start))
	}
}

func (c *defaultClient) command(s string) string {
	if c.single {
		return sanitizeCommand(s)
	}
	return strings.TrimSpace(s)
}

// sanitizeCommand keeps only the first command when several are chained with ";".
func sanitizeCommand(s string) string {
	first, _, _ := strings.Cut(s, ";")
	return strings.TrimSpace(first)
}
