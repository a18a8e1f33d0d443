package pairing

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/consent"
)

var ErrNoPair = errors.New("pairing: no session for pair")

// Pair holds one session behind its own mutex. The session is never touched
// outside Pair.Do, which is the single point of mutual exclusion for it.
type Pair struct {
	key PairKey

	mu          sync.Mutex
	session     *consent.Session
	settledAt   time.Duration // clock reading when the session last entered Idle or Terminated
	unsubscribe []func()
}

// Key returns the pair key.
func (p *Pair) Key() PairKey { return p.key }

// Do runs fn with exclusive access to the pair's session.
func (p *Pair) Do(fn func(*consent.Session) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fn(p.session)
}

// Snapshot returns the current session view.
func (p *Pair) Snapshot() consent.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session.Snapshot()
}

// expired reports whether an Idle or Terminated session has sat in that
// state for its retention period. Callers hold p.mu.
func (p *Pair) expired(now time.Duration, cfg DriverConfig) bool {
	switch p.session.State() {
	case consent.StateTerminated:
		return now-p.settledAt >= cfg.RetainTerminated
	case consent.StateIdle:
		return now-p.settledAt >= cfg.RetainIdle
	default:
		return false
	}
}

func (p *Pair) detach() {
	for _, fn := range p.unsubscribe {
		fn()
	}
	p.unsubscribe = nil
}

// Option configures a Registry.
type Option func(*Registry)

// WithMetrics records session activity on m.
func WithMetrics(m *Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// Registry maps pair keys to live sessions.
//
// Lock order is registry then pair. Observers run while the pair lock is
// held and must not call back into the Registry.
type Registry struct {
	log     *slog.Logger
	cfg     consent.Config
	clock   consent.Clock
	oracle  consent.DistanceOracle
	metrics *Metrics

	mu    sync.RWMutex
	pairs map[PairKey]*Pair

	obsMu     sync.RWMutex
	observers []func(consent.Event)
}

// New builds a Registry whose sessions share cfg, clock and oracle.
func New(log *slog.Logger, cfg consent.Config, clock consent.Clock, oracle consent.DistanceOracle, opts ...Option) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil || oracle == nil {
		return nil, fmt.Errorf("%w: registry needs a clock and a distance oracle", consent.ErrInvalidInput)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	r := &Registry{
		log:    log,
		cfg:    cfg,
		clock:  clock,
		oracle: oracle,
		pairs:  make(map[PairKey]*Pair),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// OnEvent registers fn for every notification of every session.
func (r *Registry) OnEvent(fn func(consent.Event)) {
	if fn == nil {
		return
	}
	r.obsMu.Lock()
	r.observers = append(r.observers, fn)
	r.obsMu.Unlock()
}

// Open returns the live session for (a, b), creating one if none exists.
// A terminated session is discarded and replaced by a fresh Idle one.
func (r *Registry) Open(a, b consent.ParticipantID) (*Pair, error) {
	key := NewPairKey(a, b)

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pairs[key]
	if ok {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.session.State() != consent.StateTerminated {
			return p, nil
		}
	}

	s, err := consent.New(a, b, r.cfg, r.clock, r.oracle, consent.WithLogger(r.log))
	if err != nil {
		return nil, err
	}

	if ok {
		r.metrics.sessionClosed(p.session.State())
		p.detach()
		p.session = s
		p.settledAt = r.clock.Now()
		r.log.Debug("pairing.reopen", "pair_id", key.String(), "session_id", s.ID())
	} else {
		p = &Pair{key: key, session: s, settledAt: r.clock.Now()}
		r.pairs[key] = p
		r.log.Debug("pairing.open", "pair_id", key.String(), "session_id", s.ID())
	}
	r.attach(p, s)
	r.metrics.sessionOpened()
	return p, nil
}

// Get returns the pair for (a, b), if any.
func (r *Registry) Get(a, b consent.ParticipantID) (*Pair, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pairs[NewPairKey(a, b)]
	return p, ok
}

// Do runs fn on the session for (a, b). ErrNoPair if none is open.
func (r *Registry) Do(a, b consent.ParticipantID, fn func(*consent.Session) error) error {
	p, ok := r.Get(a, b)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoPair, NewPairKey(a, b))
	}
	return p.Do(fn)
}

// Close discards the session for (a, b) whatever its state.
func (r *Registry) Close(a, b consent.ParticipantID) bool {
	key := NewPairKey(a, b)

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pairs[key]
	if !ok {
		return false
	}
	p.mu.Lock()
	r.metrics.sessionClosed(p.session.State())
	p.detach()
	p.mu.Unlock()

	delete(r.pairs, key)
	r.log.Debug("pairing.close", "pair_id", key.String())
	return true
}

// Len returns the number of tracked pairs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pairs)
}

// Pairs returns a snapshot of every session, ordered by pair key.
func (r *Registry) Pairs() []consent.Snapshot {
	list := r.list()
	out := make([]consent.Snapshot, 0, len(list))
	for _, p := range list {
		out = append(out, p.Snapshot())
	}
	return out
}

func (r *Registry) list() []*Pair {
	r.mu.RLock()
	out := make([]*Pair, 0, len(r.pairs))
	for _, p := range r.pairs {
		out = append(out, p)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(x, y *Pair) int { return compareKeys(x.key, y.key) })
	return out
}

// evict removes key if its session is still expired under cfg.
func (r *Registry) evict(key PairKey, cfg DriverConfig) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pairs[key]
	if !ok {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.expired(r.clock.Now(), cfg) {
		return false
	}

	state := p.session.State()
	r.metrics.sessionClosed(state)
	p.detach()
	delete(r.pairs, key)
	r.log.Debug("pairing.evict", "pair_id", key.String(), "session_id", p.session.ID(), "state", state.String())
	return true
}

// attach subscribes the registry to s. Callers hold p.mu.
func (r *Registry) attach(p *Pair, s *consent.Session) {
	a, b := s.Participants()
	id := s.ID()

	offState := s.OnStateChange(func(t consent.Transition) {
		if t.To == consent.StateIdle || t.To == consent.StateTerminated {
			p.settledAt = r.clock.Now()
		}
		r.metrics.transition(t.From, t.To)
		r.emit(consent.Event{
			Kind:      consent.EventStateChanged,
			SessionID: id,
			A:         a,
			B:         b,
			From:      t.From,
			To:        t.To,
		})
	})
	offTerm := s.OnTerminated(func(reason consent.Reason) {
		r.metrics.terminated(reason)
		r.emit(consent.Event{
			Kind:      consent.EventTerminated,
			SessionID: id,
			A:         a,
			B:         b,
			To:        consent.StateTerminated,
			Reason:    reason,
		})
	})
	p.unsubscribe = []func(){offState, offTerm}
}

func (r *Registry) emit(ev consent.Event) {
	r.obsMu.RLock()
	obs := r.observers
	r.obsMu.RUnlock()

	for _, fn := range obs {
		fn(ev)
	}
}

func compareKeys(x, y PairKey) int {
	return cmp.Or(cmp.Compare(x.Lo, y.Lo), cmp.Compare(x.Hi, y.Hi))
}
