// Package config loads the command line tool's YAML configuration file.
package config

import (
	"bytes"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/wirebind/rsyncwire/pkg/compat"
	"github.com/wirebind/rsyncwire/pkg/protocol"
)

// Configuration represents the tool's configuration file.
type Configuration struct {
	// Daemon contains daemon connection parameters.
	Daemon struct {
		// Address is the default daemon address for probing.
		Address string `yaml:"address"`
	} `yaml:"daemon"`
	// Protocol contains protocol negotiation parameters.
	Protocol struct {
		// Ceiling is the highest protocol version to advertise. Zero means
		// the newest supported version.
		Ceiling int32 `yaml:"ceiling"`
	} `yaml:"protocol"`
	// Checksums is the strong checksum preference list for algorithm
	// negotiation. Empty means all supported algorithms.
	Checksums []string `yaml:"checksums"`
	// Compressions is the compression preference list for algorithm
	// negotiation. Empty means all supported algorithms.
	Compressions []string `yaml:"compressions"`
	// Log is the log level name.
	Log string `yaml:"log"`
}

// Default returns the default configuration.
func Default() *Configuration {
	configuration := &Configuration{}
	configuration.Daemon.Address = "localhost:873"
	return configuration
}

// Load loads the configuration file at the specified path. A missing file
// yields the default configuration; a malformed or unknown-key file is an
// error.
func Load(path string) (*Configuration, error) {
	configuration := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return configuration, nil
		}
		return nil, errors.Wrap(err, "unable to load configuration file")
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(configuration); err != nil {
		return nil, errors.Wrap(err, "unable to parse configuration file")
	}
	return configuration, nil
}

// Versions returns the protocol versions to advertise, honoring the
// configured ceiling.
func (c *Configuration) Versions() ([]protocol.Version, error) {
	if c.Protocol.Ceiling == 0 {
		return protocol.Supported, nil
	}
	ceiling, err := protocol.New(c.Protocol.Ceiling)
	if err != nil {
		return nil, errors.Wrap(err, "invalid protocol ceiling")
	}
	return protocol.RangeThrough(ceiling), nil
}

// EnsureValid verifies that the configuration's algorithm lists only name
// known algorithms.
func (c *Configuration) EnsureValid() error {
	for _, name := range c.Checksums {
		if !knownName(compat.ChecksumNames, compat.NormalizeChecksumName(name)) {
			return errors.Errorf("unknown checksum algorithm: %s", name)
		}
	}
	for _, name := range c.Compressions {
		if !knownName(compat.CompressionNames, name) {
			return errors.Errorf("unknown compression algorithm: %s", name)
		}
	}
	return nil
}

func knownName(known []string, name string) bool {
	for _, candidate := range known {
		if candidate == name {
			return true
		}
	}
	return false
}
