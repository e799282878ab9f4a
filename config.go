package p64

import (
	"os"

	"gopkg.in/yaml.v3"
)

// SpinConfig tunes the spin/backoff behaviour shared by every lock and
// by the ring buffer's non-blocking release path. Zero value is valid
// and resolves to the library defaults.
type SpinConfig struct {
	BackoffBase uint32 `yaml:"backoff_base"`
	BackoffMax  uint32 `yaml:"backoff_max"`
	// PendMax overrides the ring buffer's pending-bitmap width. Must be
	// <=32 (the bitmap is a 32-bit word); 0 means "use 32".
	PendMax uint32 `yaml:"pend_max"`
}

// Option configures a lock or ring buffer constructor.
type Option func(*SpinConfig)

// WithBackoff sets the base and maximum doze() spin counts used while
// waiting on a contended word.
func WithBackoff(base, max uint32) Option {
	return func(c *SpinConfig) {
		c.BackoffBase = base
		c.BackoffMax = max
	}
}

// WithPendMax overrides the ring buffer's pending-bitmap width. Values
// above 32 (from here or from LoadSpinConfigFile) are clamped to 32 when
// the constructor resolves its options.
func WithPendMax(n uint32) Option {
	return func(c *SpinConfig) {
		c.PendMax = n
	}
}

func resolve(opts []Option) (SpinConfig, backoff) {
	cfg := SpinConfig{
		BackoffBase: defaultBackoff.base,
		BackoffMax:  defaultBackoff.max,
		PendMax:     pendMax,
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = defaultBackoff.base
	}
	if cfg.BackoffMax < cfg.BackoffBase {
		cfg.BackoffMax = cfg.BackoffBase
	}
	if cfg.PendMax == 0 || cfg.PendMax > pendMax {
		cfg.PendMax = pendMax
	}
	return cfg, backoff{base: cfg.BackoffBase, max: cfg.BackoffMax}
}

// LoadSpinConfigFile reads a YAML file of the shape:
//
//	backoff_base: 1
//	backoff_max: 4096
//	pend_max: 32
//
// and returns an Option applying it. A missing file is not an error;
// it yields a no-op Option so callers can unconditionally pass the
// result of LoadSpinConfigFile to every constructor in a deployment.
func LoadSpinConfigFile(path string) (Option, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return func(*SpinConfig) {}, nil
		}
		return nil, err
	}
	var cfg SpinConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return func(c *SpinConfig) {
		if cfg.BackoffBase != 0 {
			c.BackoffBase = cfg.BackoffBase
		}
		if cfg.BackoffMax != 0 {
			c.BackoffMax = cfg.BackoffMax
		}
		if cfg.PendMax != 0 {
			c.PendMax = cfg.PendMax
		}
	}, nil
}
