package pairing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/consent"
)

// RangeFeed answers whether two participants are currently within range.
type RangeFeed interface {
	InRange(a, b consent.ParticipantID, maxRange float64) bool
}

// DriverConfig configures the cadence loop.
type DriverConfig struct {
	// Interval between passes. Default: 100ms.
	Interval time.Duration

	// RetainTerminated is how long a terminated session stays queryable
	// before it is evicted. Default: 30s.
	RetainTerminated time.Duration

	// RetainIdle is how long a session may sit in Idle, for example against
	// a peer that never connects, before it is evicted. Default: 2m.
	RetainIdle time.Duration
}

func (c DriverConfig) withDefaults() DriverConfig {
	if c.Interval <= 0 {
		c.Interval = 100 * time.Millisecond
	}
	if c.RetainTerminated <= 0 {
		c.RetainTerminated = 30 * time.Second
	}
	if c.RetainIdle <= 0 {
		c.RetainIdle = 2 * time.Minute
	}
	return c
}

// Driver feeds every session its range signal and its tick.
type Driver struct {
	reg  *Registry
	feed RangeFeed
	cfg  DriverConfig
	log  *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewDriver builds a Driver over reg. It does not start it.
func NewDriver(reg *Registry, feed RangeFeed, cfg DriverConfig) (*Driver, error) {
	if reg == nil || feed == nil {
		return nil, errors.New("pairing: driver needs a registry and a range feed")
	}
	return &Driver{
		reg:  reg,
		feed: feed,
		cfg:  cfg.withDefaults(),
		log:  reg.log,
	}, nil
}

// Start launches the loop in a goroutine. Call Stop to shut it down.
func (d *Driver) Start() {
	if d.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan struct{})

	go func() {
		defer close(d.done)
		_ = d.Run(ctx)
	}()
}

// Stop shuts down a loop launched with Start and waits for it.
func (d *Driver) Stop() {
	if d.cancel != nil {
		d.cancel()
		<-d.done
		d.cancel = nil
		d.done = nil
	}
}

// Run blocks, sweeping every Interval until ctx is done.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	d.log.Info("pairing.driver.start",
		"interval", d.cfg.Interval,
		"retain_terminated", d.cfg.RetainTerminated,
		"retain_idle", d.cfg.RetainIdle)

	for {
		select {
		case <-ctx.Done():
			d.log.Info("pairing.driver.stop")
			return nil
		case <-ticker.C:
			d.Sweep()
		}
	}
}

// Sweep performs one pass: for every live session it samples range,
// applies SetInRange, then Tick. Idle and Terminated sessions past their
// retention are evicted.
func (d *Driver) Sweep() {
	start := time.Now()

	var expired []PairKey
	for _, p := range d.reg.list() {
		_ = p.Do(func(s *consent.Session) error {
			if s.State() != consent.StateTerminated {
				a, b := s.Participants()
				s.SetInRange(d.feed.InRange(a, b, s.Config().MaxRangeMeters))
				s.Tick()
			}
			if p.expired(d.reg.clock.Now(), d.cfg) {
				expired = append(expired, p.key)
			}
			return nil
		})
	}

	for _, k := range expired {
		d.reg.evict(k, d.cfg)
	}

	elapsed := time.Since(start)
	d.reg.metrics.observeSweep(elapsed)
	if len(expired) > 0 {
		d.log.Debug("pairing.sweep", "evicted", len(expired), "pairs", d.reg.Len(), "took", elapsed)
	}
}
