// Package node ties the radio, the relay queue and the dispatch engine into a
// running device, and exposes it over the management socket and an HTTP API.
package node

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/hashicorp/go-multierror"

	"espnow-bridge/pkg/log"
	"espnow-bridge/pkg/management"
	"espnow-bridge/pkg/radio"
	"espnow-bridge/pkg/radio/udpradio"
	"espnow-bridge/pkg/relayq"
)

type Node struct {
	cfg    *Config
	radio  radio.Driver
	queue  *relayq.Queue
	engine *Engine
	stats  *Stats

	mgmt *management.ManagementServer
	api  *API

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New opens the UDP radio described by cfg and builds the node on it.
func New(cfg *Config) (*Node, error) {
	drv, err := udpradio.Open(udpradio.Config{
		ListenAddr:    cfg.ListenAddr,
		BroadcastAddr: cfg.BroadcastAddr,
		Channel:       cfg.Channel,
		Self:          cfg.Self(),
		Interface:     cfg.Interface,
	})
	if err != nil {
		return nil, err
	}
	n, err := NewWithDriver(cfg, drv)
	if err != nil {
		drv.Close()
		return nil, err
	}
	return n, nil
}

// NewWithDriver builds the node on an already opened driver. The producer
// half of the relay queue is handed to the receive callback and the
// consumer half to the engine.
func NewWithDriver(cfg *Config, drv radio.Driver, opts ...Option) (*Node, error) {
	q, err := relayq.New(cfg.QueueCapacity)
	if err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}
	producer, consumer, err := q.Split()
	if err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}

	stats := &Stats{}
	if err := drv.RegisterReceiveHandler(receiveHandler(producer, stats)); err != nil {
		return nil, fmt.Errorf("node: register receive handler: %w", err)
	}
	if err := drv.RegisterSendHandler(sendObserver(stats)); err != nil {
		return nil, fmt.Errorf("node: register send handler: %w", err)
	}

	base := []Option{
		WithTable(cfg.Table()),
		WithUpstream(cfg.Upstream()),
		WithChannel(cfg.Channel),
		WithPollInterval(cfg.PollInterval),
		WithResetGrace(cfg.ResetGrace),
		WithStats(stats),
		WithQueueStats(q),
	}
	n := &Node{
		cfg:    cfg,
		radio:  drv,
		queue:  q,
		engine: NewEngine(drv, consumer, append(base, opts...)...),
		stats:  stats,
	}
	return n, nil
}

func (n *Node) Engine() *Engine { return n.engine }

// Run configures the engine, announces the node, starts the side surfaces
// and runs the worker loop until ctx is done.
func (n *Node) Run(ctx context.Context) error {
	n.engine.Configure()
	if err := n.engine.SendBoot(); err != nil {
		log.Warn().Err(err).Msg("node: boot report not sent")
	}

	if n.cfg.ManagementSocket != "" {
		n.mgmt = management.NewManagementServer(n.cfg.ManagementSocket)
		registerCommands(n.mgmt, n.engine)
		if err := n.mgmt.Start(); err != nil {
			log.Error().Err(err).Msg("node: management server not started")
			n.mgmt = nil
		} else {
			log.Info().Str("socket", n.mgmt.SocketPath()).Msg("node: management server listening")
		}
	}

	if n.cfg.APIListenAddr != "" {
		n.api = NewAPI(n.engine)
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			if err := n.api.Start(n.cfg.APIListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Str("addr", n.cfg.APIListenAddr).Msg("node: api server stopped")
			}
		}()
	}

	log.Info().Msg("node: worker loop running")
	err := n.engine.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close stops the surfaces and the radio, collecting every error.
func (n *Node) Close() error {
	var result *multierror.Error
	n.closeOnce.Do(func() {
		if n.api != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			result = multierror.Append(result, n.api.Shutdown(ctx))
			cancel()
		}
		if n.mgmt != nil {
			n.mgmt.Stop()
		}
		result = multierror.Append(result, n.radio.Close())
		n.wg.Wait()
	})
	return result.ErrorOrNil()
}
