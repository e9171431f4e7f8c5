// Package config reads cache hierarchy descriptions from YAML files.
//
// A description looks like:
//
//	seed: 1
//	network:
//	  header_size: 8
//	  latency: 1
//	  bandwidth: 72
//	modules:
//	  - name: mm
//	    kind: main_memory
//	    sets: 64
//	    ways: 8
//	    block_size: 64
//	    latency: 20
//	  - name: l1-0
//	    lower: mm
//	    sets: 16
//	    ways: 2
//	    block_size: 64
//	    latency: 2
//	    policy: lru
package config

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sarchlab/cohsim/mem/coherence"
	"github.com/sarchlab/cohsim/timing"
	"gopkg.in/yaml.v3"
)

// Network holds the parameters shared by all the interconnects.
type Network struct {
	HeaderSize int `yaml:"header_size"`
	Latency    int `yaml:"latency"`
	Bandwidth  int `yaml:"bandwidth"`

	// BufferSize is the input buffer of each node in bytes. Zero keeps the
	// builder default.
	BufferSize int `yaml:"buffer_size"`
}

// Module describes one cache or the main memory.
type Module struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"`
	Lower     string `yaml:"lower"`
	Sets      int    `yaml:"sets"`
	Ways      int    `yaml:"ways"`
	BlockSize int    `yaml:"block_size"`
	Latency   int    `yaml:"latency"`
	Policy    string `yaml:"policy"`
}

// Config is a complete hierarchy description.
type Config struct {
	Seed    int64    `yaml:"seed"`
	Network Network  `yaml:"network"`
	Modules []Module `yaml:"modules"`
}

// Default returns a configuration without modules and with the default
// network parameters.
func Default() Config {
	return Config{
		Seed: 1,
		Network: Network{
			HeaderSize: 8,
			Latency:    1,
			Bandwidth:  72,
		},
	}
}

// Load reads and validates a configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}

	c, err := Parse(bytes.NewReader(data))
	if err != nil {
		return Config{}, errors.Wrapf(err, "in %s", path)
	}

	return c, nil
}

// Parse decodes and validates a configuration. Fields that are not set keep
// the values of Default.
func Parse(r io.Reader) (Config, error) {
	c := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return Config{}, errors.New("empty config")
		}

		return Config{}, errors.Wrap(err, "decode config")
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

// Validate checks the fields one by one and then the topology as a whole.
func (c Config) Validate() error {
	if len(c.Modules) == 0 {
		return errors.New("modules: no module defined")
	}

	b, err := c.builder()
	if err != nil {
		return err
	}

	return b.Validate()
}

// Builder returns a coherence builder that creates the described system on
// the given engine.
func (c Config) Builder(engine timing.EventScheduler) (coherence.Builder, error) {
	if len(c.Modules) == 0 {
		return coherence.Builder{}, errors.New("modules: no module defined")
	}

	b, err := c.builder()
	if err != nil {
		return coherence.Builder{}, err
	}

	if err := b.Validate(); err != nil {
		return coherence.Builder{}, err
	}

	return b.WithEngine(engine), nil
}

func (c Config) builder() (coherence.Builder, error) {
	b := coherence.MakeBuilder().
		WithSeed(c.Seed).
		WithHeaderSize(c.Network.HeaderSize).
		WithNetworkLatency(c.Network.Latency).
		WithNetworkBandwidth(c.Network.Bandwidth).
		WithNetworkBufferSize(c.Network.BufferSize)

	for i, m := range c.Modules {
		spec, err := m.spec()
		if err != nil {
			return b, errors.Wrapf(err, "modules[%d]", i)
		}

		b = b.WithModule(spec)
	}

	return b, nil
}

func (m Module) spec() (coherence.ModuleSpec, error) {
	spec := coherence.ModuleSpec{
		Name:      m.Name,
		Lower:     m.Lower,
		NumSets:   m.Sets,
		NumWays:   m.Ways,
		BlockSize: m.BlockSize,
		Latency:   m.Latency,
	}

	switch m.Kind {
	case "", "cache":
		spec.Kind = coherence.KindCache
	case "main_memory", "memory":
		spec.Kind = coherence.KindMainMemory
	default:
		return spec, errors.Errorf("kind: unknown module kind %q", m.Kind)
	}

	policy := m.Policy
	if policy == "" {
		policy = "lru"
	}

	p, err := coherence.ParseReplacementPolicy(policy)
	if err != nil {
		return spec, errors.Wrap(err, "policy")
	}

	spec.Policy = p

	return spec, nil
}
