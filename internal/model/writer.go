package model

// Writer defines a generic interface for delivering stitched records to a
// persistent store or a downstream consumer.
type Writer interface {
	// Write persists one stitched batch. batch identifies the batch and is
	// unique per Manager run.
	Write(records []Record, batch string) error

	// Close releases the writer's resources.
	Close() error
}
