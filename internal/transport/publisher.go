package transport

import (
	"FlowSleuth/internal/config"
	"FlowSleuth/internal/model"
	"log"

	"github.com/nats-io/nats.go"
)

// Publisher is responsible for publishing flow records to a NATS subject.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(url, subject string) (*Publisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", url)
	return &Publisher{nc: nc, subject: subject}, nil
}

// NewPublisherFromConfig creates a publisher for the configured subject.
func NewPublisherFromConfig(cfg config.NATSConfig) (*Publisher, error) {
	return NewPublisher(cfg.URL, cfg.Subject)
}

// Publish serializes a record to Protobuf and publishes it to the configured subject.
func (p *Publisher) Publish(rec model.Record) error {
	data, err := Encode(rec)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject, data)
}

// Flush blocks until the server has processed every published record.
func (p *Publisher) Flush() error {
	return p.nc.Flush()
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		log.Println("NATS connection drained and closed.")
	}
}
