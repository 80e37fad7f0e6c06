package writer

import (
	"FlowSleuth/internal/config"
	"FlowSleuth/internal/factory"
	"FlowSleuth/internal/model"
	"FlowSleuth/internal/transport"
	"fmt"
)

func init() {
	factory.RegisterWriter("nats", func(def config.WriterDef, cfg *config.Config) (model.Writer, error) {
		subject := def.NATS.Subject
		if subject == "" {
			return nil, fmt.Errorf("nats writer requires a subject")
		}
		if subject == cfg.NATS.Subject {
			return nil, fmt.Errorf("nats writer subject '%s' is the input subject", subject)
		}
		pub, err := transport.NewPublisher(cfg.NATS.URL, subject)
		if err != nil {
			return nil, err
		}
		return NewNATSWriter(pub), nil
	})
}

// NATSWriter republishes stitched sessions for downstream consumers.
type NATSWriter struct {
	pub *transport.Publisher
}

// NewNATSWriter creates a writer publishing through pub.
func NewNATSWriter(pub *transport.Publisher) *NATSWriter {
	return &NATSWriter{pub: pub}
}

// Write publishes every record of the batch and waits for the server to
// acknowledge them.
func (w *NATSWriter) Write(records []model.Record, batch string) error {
	for i, rec := range records {
		if err := w.pub.Publish(rec); err != nil {
			return fmt.Errorf("failed to publish session %d of batch %s: %w", i, batch, err)
		}
	}
	return w.pub.Flush()
}

// Close drains the NATS connection.
func (w *NATSWriter) Close() error {
	w.pub.Close()
	return nil
}
