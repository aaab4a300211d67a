// Package collector turns "give me current metrics" into an RCON exchange
// against a game server.
package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/jsirianni/gamemetrics/internal/metrics"
	"github.com/jsirianni/gamemetrics/internal/rcon"
	"github.com/jsirianni/gamemetrics/model"
	"go.uber.org/zap"
)

// DefaultRetryInterval is the fixed wait between failed connection attempts.
const DefaultRetryInterval = 5 * time.Second

// Collector produces the current metrics of a game server.
type Collector interface {
	Metrics(ctx context.Context) (model.Snapshot, error)
}

// Session is the remote console a collector drives.
type Session interface {
	Connect(ctx context.Context) error
	Authenticate(ctx context.Context, password string) (bool, error)
	Execute(ctx context.Context, command string) (string, error)
	Close() error
}

// Options configures a collector.
type Options struct {
	// Address is the host:port of the game server's RCON listener.
	Address       string
	Password      string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	RetryInterval time.Duration
	Logger        *zap.Logger
	RCONRecorder  metrics.RCONRecorder
	// PlayerRecorder may be nil.
	PlayerRecorder metrics.PlayerCountRecorder
	// NewSession overrides how sessions are created. Defaults to an rcon.Session.
	NewSession func() Session
}

// RCONCollector collects metrics for one game variant over an authenticated session.
type RCONCollector struct {
	variant        Variant
	session        Session
	logger         *zap.Logger
	playerRecorder metrics.PlayerCountRecorder
}

var _ Collector = (*RCONCollector)(nil)

// New blocks until a session to the game server is connected and
// authenticated, retrying forever with a fixed interval. It only returns an
// error when ctx is done.
func New(ctx context.Context, variant Variant, opts Options) (*RCONCollector, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("game", variant.Name))

	newSession := opts.NewSession
	if newSession == nil {
		rconOpts := rcon.Options{
			Address:      opts.Address,
			ReadTimeout:  opts.ReadTimeout,
			WriteTimeout: opts.WriteTimeout,
			Recorder:     opts.RCONRecorder,
		}
		newSession = func() Session { return rcon.New(rconOpts) }
	}

	retry := opts.RetryInterval
	if retry <= 0 {
		retry = DefaultRetryInterval
	}

	c := &connector{
		newSession:    newSession,
		password:      opts.Password,
		address:       opts.Address,
		retryInterval: retry,
		logger:        logger,
		sleep:         sleepContext,
	}
	session, err := c.establish(ctx)
	if err != nil {
		return nil, fmt.Errorf("establish %s session: %w", variant.Name, err)
	}

	return &RCONCollector{
		variant:        variant,
		session:        session,
		logger:         logger,
		playerRecorder: opts.PlayerRecorder,
	}, nil
}

// Game returns the name of the collector's game variant.
func (c *RCONCollector) Game() string {
	return c.variant.Name
}

// Metrics runs the variant's command and parses the reply. Transport errors
// are returned unchanged; unparseable replies return *MetricsCollectError.
func (c *RCONCollector) Metrics(ctx context.Context) (model.Snapshot, error) {
	raw, err := c.session.Execute(ctx, c.variant.Command)
	if err != nil {
		return model.Snapshot{}, err
	}

	count, err := c.variant.Parse(raw)
	if err != nil {
		return model.Snapshot{}, &MetricsCollectError{Game: c.variant.Name, Raw: raw, Err: err}
	}

	if c.playerRecorder != nil {
		c.playerRecorder.RecordPlayersOnline(ctx, c.variant.Name, int64(count))
	}
	c.logger.Debug("collected metrics", zap.Uint16("players_online", count))
	return model.NewSnapshot(count), nil
}

// Close closes the underlying session.
func (c *RCONCollector) Close() error {
	return c.session.Close()
}
