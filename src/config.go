package il2prx

/*------------------------------------------------------------------
 *
 * Purpose:	Read the receiver configuration file.
 *
 * Description:	YAML, every key optional.  Anything not in the file
 *		keeps the value from DefaultConfig.  Command line options
 *		are applied on top afterwards by the caller.
 *
 *		Example:
 *
 *			seed: 0x1f0
 *			store_packets: true
 *			database: observations.db
 *			output_dir: received_packets
 *			access_threshold: 3
 *			mqtt:
 *			  enabled: true
 *			  broker: tcp://localhost:1883
 *
 *------------------------------------------------------------------*/

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Seed            uint16     `yaml:"seed"`
	StorePackets    bool       `yaml:"store_packets"`
	RunID           int64      `yaml:"run_id"` // 0 means create a new run in the database.
	AccessThreshold int        `yaml:"access_threshold"`
	Database        string     `yaml:"database"`
	OutputDir       string     `yaml:"output_dir"`
	OutputPattern   string     `yaml:"output_pattern"`
	ChunkBits       int        `yaml:"chunk_bits"`
	LogLevel        string     `yaml:"log_level"`
	MetricsListen   string     `yaml:"metrics_listen"`
	MQTT            MQTTConfig `yaml:"mqtt"`
}

func DefaultConfig() Config {
	return Config{
		Seed:            DefaultSeed,
		AccessThreshold: DefaultAccessThreshold,
		Database:        "observations.db",
		OutputDir:       "received_packets",
		OutputPattern:   DefaultPayloadPattern,
		ChunkBits:       4096,
		LogLevel:        "info",
		MQTT: MQTTConfig{
			TopicPrefix: "il2p",
		},
	}
}

// LoadConfig reads path over the defaults.  A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	var cfg = DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	var data, err = os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}

	var dec = yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Seed > lfsrMask {
		return fmt.Errorf("seed 0x%x does not fit the 9 bit scrambler", c.Seed)
	}
	if c.AccessThreshold < 0 || c.AccessThreshold >= AccessCodeBits {
		return fmt.Errorf("access_threshold %d out of range 0-%d", c.AccessThreshold, AccessCodeBits-1)
	}
	if c.ChunkBits <= 0 {
		return fmt.Errorf("chunk_bits must be positive, not %d", c.ChunkBits)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return errors.New("mqtt is enabled but no broker is set")
	}
	return nil
}
