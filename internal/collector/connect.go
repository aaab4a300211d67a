package collector

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type state int

const (
	stateDisconnected state = iota
	stateConnected
	stateAuthenticated
)

// connector drives a session from disconnected to authenticated.
type connector struct {
	newSession    func() Session
	password      string
	address       string
	retryInterval time.Duration
	logger        *zap.Logger
	sleep         func(ctx context.Context, d time.Duration) error
}

// establish loops until a session is authenticated or ctx is done. Every
// failure discards the session and starts over from a fresh connect.
func (c *connector) establish(ctx context.Context) (Session, error) {
	var session Session
	st := stateDisconnected
	for st != stateAuthenticated {
		switch st {
		case stateDisconnected:
			session = c.newSession()
			if err := session.Connect(ctx); err != nil {
				c.logger.Warn("failed to connect to rcon, retrying",
					zap.String("address", c.address),
					zap.Duration("retry_in", c.retryInterval),
					zap.Error(err))
				if err := c.backoff(ctx, session); err != nil {
					return nil, err
				}
				continue
			}
			st = stateConnected

		case stateConnected:
			ok, err := session.Authenticate(ctx, c.password)
			if err != nil {
				c.logger.Warn("could not attempt rcon authentication, retrying",
					zap.String("address", c.address),
					zap.Duration("retry_in", c.retryInterval),
					zap.Error(err))
			} else if !ok {
				c.logger.Error("rcon authentication failed, is the password correct?",
					zap.String("address", c.address),
					zap.Duration("retry_in", c.retryInterval),
					zap.Error(ErrAuthenticationRejected))
			} else {
				st = stateAuthenticated
				continue
			}
			st = stateDisconnected
			if err := c.backoff(ctx, session); err != nil {
				return nil, err
			}
		}
	}
	c.logger.Info("rcon session authenticated", zap.String("address", c.address))
	return session, nil
}

func (c *connector) backoff(ctx context.Context, session Session) error {
	_ = session.Close()
	return c.sleep(ctx, c.retryInterval)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
