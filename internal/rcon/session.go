// Package rcon implements a client session for the Source RCON protocol, the
// remote console spoken by Factorio and Source engine game servers.
package rcon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jsirianni/gamemetrics/internal/metrics"
)

// Default socket timeouts. Reads are allowed to take longer than writes
// because servers can be slow to answer while a stalled write means the peer is gone.
const (
	DefaultReadTimeout  = 13 * time.Second
	DefaultWriteTimeout = 37 * time.Second
)

// Options configures a Session.
type Options struct {
	// Address is the host:port of the RCON listener.
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Recorder     metrics.RCONRecorder
}

// Session owns one connection to an RCON server. It is not safe for
// concurrent use and performs no retries.
type Session struct {
	opts          Options
	conn          net.Conn
	nextID        int32
	authenticated bool
}

// New returns an unconnected session.
func New(opts Options) *Session {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	return &Session{opts: opts}
}

// Authenticated reports whether the server accepted the password on this connection.
func (s *Session) Authenticated() bool {
	return s.authenticated
}

// Connect opens the TCP connection. Any previous connection is closed first.
func (s *Session) Connect(ctx context.Context) error {
	start := time.Now()
	_ = s.Close()

	dialer := &net.Dialer{Timeout: s.opts.WriteTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.opts.Address)
	s.record(ctx, metrics.OpConnect, metrics.ClassifyError(err), start)
	if err != nil {
		return &ConnectionError{Op: "dial", Addr: s.opts.Address, Err: err}
	}
	s.conn = conn
	return nil
}

// Authenticate sends the password. A rejected password returns false with a
// nil error; only transport and framing failures are errors.
func (s *Session) Authenticate(ctx context.Context, password string) (bool, error) {
	start := time.Now()
	ok, err := s.authenticate(ctx, password)
	switch {
	case err != nil:
		s.record(ctx, metrics.OpAuthenticate, metrics.ClassifyError(err), start)
	case !ok:
		s.record(ctx, metrics.OpAuthenticate, metrics.ErrorAuthRejected, start)
	default:
		s.record(ctx, metrics.OpAuthenticate, metrics.ErrorNone, start)
	}
	return ok, err
}

func (s *Session) authenticate(ctx context.Context, password string) (bool, error) {
	s.authenticated = false
	id, err := s.send(ctx, typeAuth, password)
	if err != nil {
		return false, err
	}
	readBy := deadline(ctx, s.opts.ReadTimeout)
	for {
		p, err := s.receive(readBy)
		if err != nil {
			return false, err
		}
		// Source servers emit an empty response value ahead of the auth response.
		if p.Type == typeResponseValue {
			continue
		}
		if p.Type != typeAuthResponse {
			return false, &ProtocolError{Reason: fmt.Sprintf("unexpected packet type %d during auth", p.Type)}
		}
		switch p.ID {
		case authFailedID:
			return false, nil
		case id:
			s.authenticated = true
			return true, nil
		default:
			return false, &ProtocolError{Reason: fmt.Sprintf("auth response id %d does not match request %d", p.ID, id)}
		}
	}
}

// Execute sends one command and returns the body of the matching reply
// unmodified.
func (s *Session) Execute(ctx context.Context, command string) (string, error) {
	start := time.Now()
	body, err := s.execute(ctx, command)
	s.record(ctx, metrics.OpExecute, metrics.ClassifyError(err), start)
	return body, err
}

func (s *Session) execute(ctx context.Context, command string) (string, error) {
	if !s.authenticated {
		return "", ErrNotAuthenticated
	}
	id, err := s.send(ctx, typeExecCommand, command)
	if err != nil {
		return "", err
	}
	// One read deadline covers the whole reply, stale packets included.
	readBy := deadline(ctx, s.opts.ReadTimeout)
	for {
		p, err := s.receive(readBy)
		if err != nil {
			return "", err
		}
		if p.ID != id {
			// stale reply to an earlier request
			continue
		}
		if p.Type != typeResponseValue {
			return "", &ProtocolError{Reason: fmt.Sprintf("unexpected packet type %d for command reply", p.Type)}
		}
		return p.Body, nil
	}
}

// Close closes the connection. It is safe to call on an unconnected session.
func (s *Session) Close() error {
	s.authenticated = false
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *Session) send(ctx context.Context, typ int32, body string) (int32, error) {
	if s.conn == nil {
		return 0, ErrNotConnected
	}
	id := s.requestID()
	if err := s.conn.SetWriteDeadline(deadline(ctx, s.opts.WriteTimeout)); err != nil {
		return 0, &ConnectionError{Op: "write", Addr: s.opts.Address, Err: err}
	}
	if err := writePacket(s.conn, packet{ID: id, Type: typ, Body: body}); err != nil {
		var perr *ProtocolError
		if errors.As(err, &perr) {
			return 0, err
		}
		return 0, &ConnectionError{Op: "write", Addr: s.opts.Address, Err: err}
	}
	return id, nil
}

func (s *Session) receive(readBy time.Time) (packet, error) {
	if s.conn == nil {
		return packet{}, ErrNotConnected
	}
	if err := s.conn.SetReadDeadline(readBy); err != nil {
		return packet{}, &ConnectionError{Op: "read", Addr: s.opts.Address, Err: err}
	}
	p, err := readPacket(s.conn)
	if err != nil {
		var perr *ProtocolError
		if errors.As(err, &perr) {
			return packet{}, err
		}
		return packet{}, &ConnectionError{Op: "read", Addr: s.opts.Address, Err: err}
	}
	return p, nil
}

// requestID returns the next positive request id. -1 is reserved for auth failures.
func (s *Session) requestID() int32 {
	if s.nextID <= 0 || s.nextID == 1<<31-1 {
		s.nextID = 0
	}
	s.nextID++
	return s.nextID
}

func (s *Session) record(ctx context.Context, op, errType string, start time.Time) {
	if s.opts.Recorder != nil {
		s.opts.Recorder.RecordRequest(ctx, op, errType, time.Since(start))
	}
}

// deadline returns the earlier of now+timeout and the context deadline.
func deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}
