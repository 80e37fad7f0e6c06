package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// StitchConfig controls the stitching engine.
type StitchConfig struct {
	// MissingKeyPolicy is one of "passthrough", "skip" or "fail".
	MissingKeyPolicy string `yaml:"missing_key_policy"`
}

// ConverterConfig controls the pcap to flow record converter.
type ConverterConfig struct {
	ActiveTimeout    string `yaml:"active_timeout"`
	IdleTimeout      string `yaml:"idle_timeout"`
	ByteDistribution bool   `yaml:"byte_distribution"`
}

// EngineConfig holds the configuration of the long-running stitching engine.
type EngineConfig struct {
	BatchInterval       string `yaml:"batch_interval"`
	SizeOfRecordChannel int    `yaml:"size_of_record_channel"`
}

// NATSConfig holds the NATS connection used to move flow records around.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// JSONWriterConfig holds the settings for the JSON lines writer.
type JSONWriterConfig struct {
	// Path is the output file; "-" writes to standard output.
	Path string `yaml:"path"`
}

// GobWriterConfig holds the settings for the gob snapshot writer.
type GobWriterConfig struct {
	RootPath string `yaml:"root_path"`
}

// ClickHouseConfig holds the connection settings for ClickHouse.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// NATSWriterConfig holds the settings for republishing stitched records.
type NATSWriterConfig struct {
	Subject string `yaml:"subject"`
}

// WriterDef defines a single writer from the config file.
type WriterDef struct {
	Type       string           `yaml:"type"`
	Enabled    bool             `yaml:"enabled"`
	JSON       JSONWriterConfig `yaml:"json"`
	Gob        GobWriterConfig  `yaml:"gob"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	NATS       NATSWriterConfig `yaml:"nats"`
}

// APIConfig holds the listen addresses of ns-api.
type APIConfig struct {
	ListenAddr     string `yaml:"listen_addr"`
	GRPCListenAddr string `yaml:"grpc_listen_addr"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Stitch    StitchConfig    `yaml:"stitch"`
	Converter ConverterConfig `yaml:"converter"`
	Engine    EngineConfig    `yaml:"engine"`
	NATS      NATSConfig      `yaml:"nats"`
	Writers   []WriterDef     `yaml:"writers"`
	API       APIConfig       `yaml:"api"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	return &Config{
		Stitch:    StitchConfig{MissingKeyPolicy: "passthrough"},
		Converter: ConverterConfig{ActiveTimeout: "30s", IdleTimeout: "15s", ByteDistribution: true},
		Engine:    EngineConfig{BatchInterval: "10s", SizeOfRecordChannel: 1024},
		NATS:      NATSConfig{URL: "nats://127.0.0.1:4222", Subject: "flowsleuth.records"},
		Writers: []WriterDef{
			{Type: "json", Enabled: true, JSON: JSONWriterConfig{Path: "-"}},
		},
		API: APIConfig{ListenAddr: ":8080", GRPCListenAddr: ":9090"},
	}
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
// Settings missing from the file keep their Default values.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config '%s': %w", filePath, err)
	}
	return cfg, nil
}

// Validate checks the settings that are parsed lazily by other packages.
func (c *Config) Validate() error {
	switch c.Stitch.MissingKeyPolicy {
	case "", "passthrough", "skip", "fail":
	default:
		return fmt.Errorf("unknown missing_key_policy '%s'", c.Stitch.MissingKeyPolicy)
	}

	durations := map[string]string{
		"converter.active_timeout": c.Converter.ActiveTimeout,
		"converter.idle_timeout":   c.Converter.IdleTimeout,
		"engine.batch_interval":    c.Engine.BatchInterval,
	}
	for name, value := range durations {
		if _, err := ParseDuration(value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	for i, w := range c.Writers {
		if w.Type == "" {
			return fmt.Errorf("writer %d has no type", i)
		}
	}
	return nil
}

// ParseDuration parses a positive duration.
func ParseDuration(value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration '%s': %w", value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration '%s' must be positive", value)
	}
	return d, nil
}
