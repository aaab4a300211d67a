package rcon

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer accepts a single connection and answers packets with handle.
type fakeServer struct {
	ln net.Listener
}

func newFakeServer(t *testing.T, handle func(conn net.Conn, p packet)) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			p, err := readPacket(conn)
			if err != nil {
				return
			}
			handle(conn, p)
		}
	}()
	return &fakeServer{ln: ln}
}

func (f *fakeServer) addr() string {
	return f.ln.Addr().String()
}

// factorioHandler mimics a server with the given password that answers every
// command with reply.
func factorioHandler(password, reply string) func(net.Conn, packet) {
	return func(conn net.Conn, p packet) {
		switch p.Type {
		case typeAuth:
			id := p.ID
			if p.Body != password {
				id = authFailedID
			}
			_ = writePacket(conn, packet{ID: p.ID, Type: typeResponseValue})
			_ = writePacket(conn, packet{ID: id, Type: typeAuthResponse})
		case typeExecCommand:
			_ = writePacket(conn, packet{ID: p.ID, Type: typeResponseValue, Body: reply})
		}
	}
}

func connectedSession(t *testing.T, addr string) *Session {
	t.Helper()
	s := New(Options{Address: addr, ReadTimeout: time.Second, WriteTimeout: time.Second})
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSession_AuthenticateAndExecute(t *testing.T) {
	srv := newFakeServer(t, factorioHandler("secret", "Online player (3):"))
	s := connectedSession(t, srv.addr())

	ok, err := s.Authenticate(context.Background(), "secret")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, s.Authenticated())

	body, err := s.Execute(context.Background(), "/players online count")
	require.NoError(t, err)
	assert.Equal(t, "Online player (3):", body)
}

func TestSession_AuthenticateRejected(t *testing.T) {
	srv := newFakeServer(t, factorioHandler("secret", ""))
	s := connectedSession(t, srv.addr())

	ok, err := s.Authenticate(context.Background(), "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, s.Authenticated())

	_, err = s.Execute(context.Background(), "/players online count")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestSession_ExecuteSkipsStaleReplies(t *testing.T) {
	srv := newFakeServer(t, func(conn net.Conn, p packet) {
		switch p.Type {
		case typeAuth:
			_ = writePacket(conn, packet{ID: p.ID, Type: typeAuthResponse})
		case typeExecCommand:
			_ = writePacket(conn, packet{ID: p.ID + 100, Type: typeResponseValue, Body: "old"})
			_ = writePacket(conn, packet{ID: p.ID, Type: typeResponseValue, Body: "new"})
		}
	})
	s := connectedSession(t, srv.addr())

	ok, err := s.Authenticate(context.Background(), "x")
	require.NoError(t, err)
	require.True(t, ok)

	body, err := s.Execute(context.Background(), "status")
	require.NoError(t, err)
	assert.Equal(t, "new", body)
}

func TestSession_ExecuteReadTimeout(t *testing.T) {
	srv := newFakeServer(t, func(conn net.Conn, p packet) {
		if p.Type == typeAuth {
			_ = writePacket(conn, packet{ID: p.ID, Type: typeAuthResponse})
		}
		// commands are never answered
	})
	s := New(Options{Address: srv.addr(), ReadTimeout: 50 * time.Millisecond, WriteTimeout: time.Second})
	require.NoError(t, s.Connect(context.Background()))
	defer s.Close()

	ok, err := s.Authenticate(context.Background(), "x")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = s.Execute(context.Background(), "status")
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "read", connErr.Op)
}

func TestSession_ExecuteStaleFloodHitsDeadline(t *testing.T) {
	srv := newFakeServer(t, func(conn net.Conn, p packet) {
		switch p.Type {
		case typeAuth:
			_ = writePacket(conn, packet{ID: p.ID, Type: typeAuthResponse})
		case typeExecCommand:
			// never the matching id, well past the read timeout
			for i := 0; i < 300; i++ {
				if err := writePacket(conn, packet{ID: p.ID + 1, Type: typeResponseValue, Body: "old"}); err != nil {
					return
				}
				time.Sleep(10 * time.Millisecond)
			}
		}
	})
	s := New(Options{Address: srv.addr(), ReadTimeout: 100 * time.Millisecond, WriteTimeout: time.Second})
	require.NoError(t, s.Connect(context.Background()))
	defer s.Close()

	ok, err := s.Authenticate(context.Background(), "x")
	require.NoError(t, err)
	require.True(t, ok)

	start := time.Now()
	_, err = s.Execute(context.Background(), "status")
	elapsed := time.Since(start)

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "read", connErr.Op)
	assert.Less(t, elapsed, time.Second)
}

func TestSession_AuthResponseOnly(t *testing.T) {
	// Factorio answers auth without the leading empty response value.
	srv := newFakeServer(t, func(conn net.Conn, p packet) {
		switch p.Type {
		case typeAuth:
			id := p.ID
			if p.Body != "secret" {
				id = authFailedID
			}
			_ = writePacket(conn, packet{ID: id, Type: typeAuthResponse})
		case typeExecCommand:
			_ = writePacket(conn, packet{ID: p.ID, Type: typeResponseValue, Body: "Online players (2):"})
		}
	})

	s := connectedSession(t, srv.addr())

	ok, err := s.Authenticate(context.Background(), "secret")
	require.NoError(t, err)
	require.True(t, ok)

	body, err := s.Execute(context.Background(), "/players online count")
	require.NoError(t, err)
	assert.Equal(t, "Online players (2):", body)
}

func TestSession_AuthResponseOnlyRejected(t *testing.T) {
	srv := newFakeServer(t, func(conn net.Conn, p packet) {
		if p.Type == typeAuth {
			_ = writePacket(conn, packet{ID: authFailedID, Type: typeAuthResponse})
		}
	})
	s := connectedSession(t, srv.addr())

	ok, err := s.Authenticate(context.Background(), "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSession_ConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	s := New(Options{Address: addr, ReadTimeout: time.Second, WriteTimeout: time.Second})
	err = s.Connect(context.Background())
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "dial", connErr.Op)
}

func TestSession_NotConnected(t *testing.T) {
	s := New(Options{Address: "127.0.0.1:1"})
	_, err := s.Authenticate(context.Background(), "x")
	assert.True(t, errors.Is(err, ErrNotConnected))
	assert.NoError(t, s.Close())
}

func TestPacketRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writePacket(&buf, packet{ID: 7, Type: typeExecCommand, Body: "/players online count"}))

	// size field: id + type + body + two terminators
	assert.Equal(t, []byte{8 + 21 + 2, 0, 0, 0}, buf.Bytes()[:4])

	p, err := readPacket(&buf)
	require.NoError(t, err)
	assert.Equal(t, packet{ID: 7, Type: typeExecCommand, Body: "/players online count"}, p)
}

func TestReadPacket_InvalidSize(t *testing.T) {
	_, err := readPacket(bytes.NewReader([]byte{3, 0, 0, 0}))
	var perr *ProtocolError
	assert.ErrorAs(t, err, &perr)
}

func TestWritePacket_BodyTooLarge(t *testing.T) {
	err := writePacket(&bytes.Buffer{}, packet{Body: string(make([]byte, maxRequestBody+1))})
	var perr *ProtocolError
	assert.ErrorAs(t, err, &perr)
}
