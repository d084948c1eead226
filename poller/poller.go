package poller

import (
	"context"
	"errors"
	"time"

	ferrors "github.com/jrsteele09/go-fermax-cloud/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Refresher runs one refresh cycle.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Poller drives a Refresher on a fixed interval plus on-demand triggers.
type Poller struct {
	refresher Refresher
	interval  time.Duration
	refreshCh chan struct{}
	logger    zerolog.Logger
	initial   bool
}

type Option func(*Poller)

// WithoutInitialRefresh waits for the first tick or trigger instead of
// refreshing as soon as Run starts.
func WithoutInitialRefresh() Option {
	return func(p *Poller) {
		p.initial = false
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

func New(refresher Refresher, interval time.Duration, options ...Option) *Poller {
	p := &Poller{
		refresher: refresher,
		interval:  interval,
		refreshCh: make(chan struct{}, 1),
		logger:    log.Logger,
		initial:   true,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// TriggerRefresh asks for a cycle as soon as possible. Triggers that arrive while
// one is already pending are coalesced.
func (p *Poller) TriggerRefresh() {
	select {
	case p.refreshCh <- struct{}{}:
	default:
	}
}

// Run refreshes once immediately, then on every tick or trigger until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info().Dur("interval", p.interval).Msg("poller started")
	if p.initial {
		p.poll(ctx)
	}

	for {
		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info().Msg("poller stopped")
			return
		case <-p.refreshCh:
			timer.Stop()
			p.logger.Debug().Msg("manual refresh requested")
		case <-timer.C:
		}
		p.poll(ctx)
	}
}

func (p *Poller) poll(ctx context.Context) {
	err := p.refresher.Refresh(ctx)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
	case errors.Is(err, ferrors.ErrNoDevicesUpdated):
		p.logger.Warn().Err(err).Msg("poll produced no devices")
	default:
		p.logger.Error().Err(err).Msg("poll failed")
	}
}
