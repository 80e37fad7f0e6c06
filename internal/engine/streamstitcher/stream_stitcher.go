package streamstitcher

import (
	"FlowSleuth/internal/config"
	"FlowSleuth/internal/engine/manager"
	"FlowSleuth/internal/model"
	"FlowSleuth/internal/stitch"
	"FlowSleuth/internal/transport"
	"log"
	"sync"
)

// StreamStitcher consumes flow records from NATS and uses a manager.Manager
// to stitch them in batches.
type StreamStitcher struct {
	cfg          config.NATSConfig
	sub          *transport.Subscriber
	manager      *manager.Manager
	inputChannel chan<- model.Record

	mu       sync.Mutex
	stopped  bool
	received int
}

// New creates a new real-time stream stitcher.
func New(cfg *config.Config, writers []model.Writer) (*StreamStitcher, error) {
	mgr, err := manager.NewManager(cfg, writers)
	if err != nil {
		return nil, err
	}

	return &StreamStitcher{
		cfg:          cfg.NATS,
		manager:      mgr,
		inputChannel: mgr.Input(),
	}, nil
}

// Start starts the underlying manager, connects to NATS and begins consuming records.
func (ss *StreamStitcher) Start() error {
	log.Println("StreamStitcher starting for nats: ", ss.cfg.URL)
	sub, err := transport.NewSubscriber(ss.cfg)
	if err != nil {
		return err
	}
	ss.sub = sub

	ss.manager.Start()

	if err := ss.sub.Start(ss.handleRecord); err != nil {
		ss.sub.Close()
		ss.manager.Stop()
		return err
	}
	return nil
}

// Stop unsubscribes and then stops the manager, which flushes the final batch.
func (ss *StreamStitcher) Stop() {
	log.Println("StreamStitcher stopping...")
	if ss.sub != nil {
		ss.sub.Close()
	}
	ss.mu.Lock()
	ss.stopped = true
	log.Printf("StreamStitcher received %d records.", ss.received)
	ss.mu.Unlock()
	ss.manager.Stop()
	log.Println("StreamStitcher stopped.")
}

// Batches reports the manager's batch count and latest stats.
func (ss *StreamStitcher) Batches() (int, stitch.Stats) {
	return ss.manager.Batches()
}

// handleRecord passes a decoded record to the manager's channel. Records
// delivered after Stop are dropped.
func (ss *StreamStitcher) handleRecord(rec model.Record) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.stopped {
		return
	}
	ss.received++
	ss.inputChannel <- rec
}

// Received returns the number of records handed to the manager.
func (ss *StreamStitcher) Received() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.received
}
