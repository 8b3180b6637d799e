package node

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"espnow-bridge/pkg/addrtable"
	"espnow-bridge/pkg/log"
	"espnow-bridge/pkg/protocol"
	"espnow-bridge/pkg/protocol/spec"
	"espnow-bridge/pkg/radio"
	"espnow-bridge/pkg/relayq"
)

// Engine is the worker side of the node: it drains the relay queue, applies
// the addressing rule, answers queries and originates reports.
type Engine struct {
	radio    radio.Driver
	consumer *relayq.Consumer
	queue    *relayq.Queue
	table    *addrtable.Table
	upstream protocol.Addr
	channel  uint8

	restarter    Restarter
	resetGrace   time.Duration
	pollInterval time.Duration
	random       func() byte
	sleep        func(time.Duration)
	stats        *Stats

	// identity, written by Configure only
	devNo    uint8
	resolved bool
	ready    atomic.Bool

	handlers  protocol.MessageHandlerMap
	frame     protocol.Frame
	out       protocol.Message
	statusReq chan struct{}
}

type Option func(*Engine)

func WithTable(t *addrtable.Table) Option     { return func(e *Engine) { e.table = t } }
func WithUpstream(a protocol.Addr) Option     { return func(e *Engine) { e.upstream = a } }
func WithChannel(ch uint8) Option             { return func(e *Engine) { e.channel = ch } }
func WithRestarter(r Restarter) Option        { return func(e *Engine) { e.restarter = r } }
func WithResetGrace(d time.Duration) Option   { return func(e *Engine) { e.resetGrace = d } }
func WithPollInterval(d time.Duration) Option { return func(e *Engine) { e.pollInterval = d } }
func WithRandom(f func() byte) Option         { return func(e *Engine) { e.random = f } }
func WithSleep(f func(time.Duration)) Option  { return func(e *Engine) { e.sleep = f } }
func WithStats(s *Stats) Option               { return func(e *Engine) { e.stats = s } }
func WithQueueStats(q *relayq.Queue) Option   { return func(e *Engine) { e.queue = q } }

// NewEngine builds an engine reading from c. Defaults: compiled-in address
// table, the fixed station as upstream, channel 1, exec restart.
func NewEngine(drv radio.Driver, c *relayq.Consumer, opts ...Option) *Engine {
	e := &Engine{
		radio:        drv,
		consumer:     c,
		table:        addrtable.Default,
		upstream:     protocol.StationAddr(),
		channel:      DefaultChannel,
		restarter:    ExecRestarter{},
		resetGrace:   DefaultResetGrace,
		pollInterval: DefaultPollInterval,
		random:       func() byte { return byte(rand.Uint32()) },
		sleep:        time.Sleep,
		stats:        &Stats{},
		statusReq:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.handlers = protocol.MessageHandlerMap{
		spec.MacQuery:    e.handleMacQuery,
		spec.StatusQuery: e.handleStatusQuery,
		spec.Reset:       e.handleReset,
		spec.Run:         e.handleRun,
	}
	return e
}

// Configure registers the upstream peer and resolves the device number from
// the radio's own address. A failed peer registration is logged and
// tolerated; sends will then fail and be reported by the send observer.
func (e *Engine) Configure() {
	err := e.radio.AddPeer(radio.PeerInfo{Addr: e.upstream, Channel: e.channel})
	if err != nil && !errors.Is(err, radio.ErrPeerExists) {
		log.Error().Err(err).Str("peer", e.upstream.String()).Msg("configure: failed to add upstream peer")
	}

	self := e.radio.Addr()
	e.devNo, e.resolved = e.table.Resolve(self)
	e.ready.Store(true)
	if !e.resolved {
		log.Warn().Str("self", self.String()).Msg("configure: own address not in table, downstream frames will be ignored")
		return
	}
	log.Info().Str("self", self.String()).Uint8("dev", e.devNo).Msg("configure: device number resolved")
}

// DeviceNumber returns the resolved device number; ok is false before
// Configure or when the own address is not in the table.
func (e *Engine) DeviceNumber() (devNo uint8, ok bool) {
	if !e.ready.Load() {
		return 0, false
	}
	return e.devNo, e.resolved
}

func (e *Engine) Addr() protocol.Addr     { return e.radio.Addr() }
func (e *Engine) Upstream() protocol.Addr { return e.upstream }
func (e *Engine) Table() *addrtable.Table { return e.table }
func (e *Engine) Stats() *Stats           { return e.stats }

// Snapshot returns the counters together with the queue state.
func (e *Engine) Snapshot() StatsSnapshot {
	s := e.stats.Snapshot()
	if e.queue != nil {
		s.QueueLen = e.queue.Len()
		s.QueueEntries = e.queue.Entries()
		s.QueueCapacity = e.queue.Capacity()
		s.QueueOverflows = e.queue.Overflows()
	}
	return s
}

// Poll processes at most one queued frame and reports whether one was taken.
// The grant is released whatever the outcome.
func (e *Engine) Poll() bool {
	g, ok := e.consumer.Read()
	if !ok {
		return false
	}
	defer g.Release()
	e.stats.Polled.Add(1)

	e.frame.Load(g)
	f := &e.frame
	if f.Len() < protocol.HeaderSize {
		e.stats.Malformed.Add(1)
		log.Debug().Hex("frame", f.Bytes()).Msg("poll: frame shorter than header")
		return true
	}

	target := f.Target()
	if !e.resolved || !e.table.Contains(target) || target != e.devNo {
		e.stats.Unaddressed.Add(1)
		log.Debug().Uint8("target", target).Uint8("dev", e.devNo).Msg("poll: frame not for us")
		return true
	}

	e.out.Reset()
	if !e.handlers.Handle(f, &e.out) {
		e.stats.Unhandled.Add(1)
		log.Debug().Stringer("opcode", f.Opcode()).Hex("frame", f.Bytes()).Msg("poll: no action for opcode")
		return true
	}
	e.stats.Dispatched.Add(1)
	if e.out.Len() > 0 {
		e.SendMessage(&e.out)
	}
	return true
}

func (e *Engine) handleMacQuery(f *protocol.Frame, out *protocol.Message) {
	out.SetMac(e.devNo, e.radio.Addr())
}

func (e *Engine) handleStatusQuery(f *protocol.Frame, out *protocol.Message) {
	out.SetStatus(e.devNo, e.random())
}

func (e *Engine) handleRun(f *protocol.Frame, out *protocol.Message) {
	log.Info().Uint8("dev", e.devNo).Hex("payload", f.Payload()).Msg("run: acknowledged")
}

func (e *Engine) handleReset(f *protocol.Frame, out *protocol.Message) {
	log.Warn().Uint8("dev", e.devNo).Dur("grace", e.resetGrace).Msg("reset: requested")
	resetSequence(e.restarter, e.resetGrace, e.sleep)
}

// RequestStatus asks the worker loop to send a status report. Requests made
// before the worker gets to them collapse into one.
func (e *Engine) RequestStatus() {
	select {
	case e.statusReq <- struct{}{}:
	default:
	}
}

// pendingStatus consumes a status request, if any.
func (e *Engine) pendingStatus() bool {
	select {
	case <-e.statusReq:
		return true
	default:
		return false
	}
}

// Run is the worker loop: poll, serve a pending status request, sleep.
// It returns when ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	t := time.NewTicker(e.pollInterval)
	defer t.Stop()
	for {
		e.Poll()
		if e.pendingStatus() {
			e.SendStatus()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}
