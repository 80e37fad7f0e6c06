package factory

import (
	"FlowSleuth/internal/config"
	"FlowSleuth/internal/model"
	"fmt"
	"log"
)

// WriterFactory creates a writer from its config definition. cfg is the
// whole configuration, for writers that share top-level settings.
type WriterFactory func(def config.WriterDef, cfg *config.Config) (model.Writer, error)

// registry holds the mapping of writer types to their factory functions.
var registry = make(map[string]WriterFactory)

// RegisterWriter registers a new writer type with its factory function.
func RegisterWriter(name string, factory WriterFactory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("writer type '%s' already registered", name))
	}
	registry[name] = factory
}

// CreateWriters creates every enabled writer in the config. Unknown types are
// an error; a writer that fails to initialise is skipped with a warning so
// one unreachable sink does not stop the others.
func CreateWriters(cfg *config.Config) ([]model.Writer, error) {
	var writers []model.Writer

	for _, def := range cfg.Writers {
		if !def.Enabled {
			continue
		}
		log.Printf("Creating writer of type: '%s'\n", def.Type)

		factory, ok := registry[def.Type]
		if !ok {
			closeWriters(writers)
			return nil, fmt.Errorf("unknown writer type: '%s'", def.Type)
		}

		writer, err := factory(def, cfg)
		if err != nil {
			log.Printf("Warning: failed to create writer type '%s': %v, skipping.", def.Type, err)
			continue
		}
		writers = append(writers, writer)
	}

	return writers, nil
}

func closeWriters(writers []model.Writer) {
	for _, w := range writers {
		if err := w.Close(); err != nil {
			log.Printf("Error closing writer: %v", err)
		}
	}
}
