package manager

import (
	"FlowSleuth/internal/config"
	"FlowSleuth/internal/model"
	"FlowSleuth/internal/stitch"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager groups incoming flow records into batches, stitches each batch and
// hands the sessions to its writers.
//
// Records are only merged with records of the same batch: a session split
// across two batches is emitted once per batch.
type Manager struct {
	stitcher *stitch.Stitcher
	writers  []model.Writer

	recordChannel chan model.Record
	interval      time.Duration
	batch         []model.Record
	wg            sync.WaitGroup
	stopOnce      sync.Once

	mu      sync.Mutex
	batches int
	last    stitch.Stats
}

// NewManager creates a new Manager writing to writers.
func NewManager(cfg *config.Config, writers []model.Writer) (*Manager, error) {
	policy, err := stitch.ParsePolicy(cfg.Stitch.MissingKeyPolicy)
	if err != nil {
		return nil, err
	}

	interval, err := config.ParseDuration(cfg.Engine.BatchInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid engine batch interval: %w", err)
	}

	size := cfg.Engine.SizeOfRecordChannel
	if size <= 0 {
		size = 1024
	}

	return &Manager{
		stitcher:      stitch.New(policy),
		writers:       writers,
		recordChannel: make(chan model.Record, size),
		interval:      interval,
	}, nil
}

// Start launches the batching goroutine.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.run()
	log.Printf("Manager started with batch interval %s and %d writers.", m.interval, len(m.writers))
}

// Input returns the channel to which records should be sent.
func (m *Manager) Input() chan<- model.Record {
	return m.recordChannel
}

// run owns the current batch. Stitching happens on this goroutine, so
// batches are never stitched concurrently.
func (m *Manager) run() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case rec, ok := <-m.recordChannel:
			if !ok {
				m.flush()
				return
			}
			m.batch = append(m.batch, rec)
		case <-ticker.C:
			m.flush()
		}
	}
}

// flush stitches the pending batch and writes it to every writer.
func (m *Manager) flush() {
	if len(m.batch) == 0 {
		return
	}
	records := m.batch
	m.batch = nil

	id := batchID()
	sessions, err := m.stitcher.StitchRecords(records)
	if err != nil {
		log.Printf("ERROR: dropping batch %s of %d records: %v", id, len(records), err)
		return
	}

	stats := m.stitcher.Stats()
	log.Printf("Stitched batch %s: %d records in, %d sessions out, %d merged (%d reversed), %d skipped, %d unkeyed",
		id, stats.Records, stats.Sessions, stats.Merged, stats.Reversed, stats.Skipped, stats.Unkeyed)

	var wg sync.WaitGroup
	wg.Add(len(m.writers))
	for _, writer := range m.writers {
		go func(w model.Writer) {
			defer wg.Done()
			if err := w.Write(sessions, id); err != nil {
				log.Printf("Error writing batch %s: %v", id, err)
			}
		}(writer)
	}
	wg.Wait()

	m.mu.Lock()
	m.batches++
	m.last = stats
	m.mu.Unlock()
}

// Batches returns how many batches have been written and the stats of the latest one.
func (m *Manager) Batches() (int, stitch.Stats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batches, m.last
}

// Stop closes the input, flushes the final batch and closes the writers.
// No record may be sent to Input after Stop.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		log.Println("Manager stopping...")
		close(m.recordChannel)
		m.wg.Wait()

		for _, w := range m.writers {
			if err := w.Close(); err != nil {
				log.Printf("Error closing writer: %v", err)
			}
		}
		log.Println("Manager stopped.")
	})
}

func batchID() string {
	return time.Now().Format("2006-01-02_15-04-05") + "-" + uuid.NewString()[:8]
}
