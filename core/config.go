package core

const (
	// DefaultMaxThreads is used when Config.MaxThreads is left at zero.
	DefaultMaxThreads = 256
	// DefaultStackSize is used when Config.StackSize is left at zero. It is
	// retained for interface fidelity with the original library's
	// STACK_SIZE constant even though a goroutine's stack grows on demand
	// and is never carved out of this buffer (see Open Question 1).
	DefaultStackSize = 64 * 1024
)

// Config carries the tunables Init accepts, following the same
// functional-options ergonomics as the teacher's TaskSchedulerConfig: a
// zero Config is valid and withDefaults (applied by NewConfig and
// NewScheduler) fills in every unset field.
type Config struct {
	// QuantumMicros is the virtual-CPU-time quantum length, in
	// microseconds. Must be > 0.
	QuantumMicros int64
	// MaxThreads is the exclusive upper bound on thread ids: valid ids are
	// [0, MaxThreads). Must be >= 2 (bootstrap plus at least one spawn slot).
	MaxThreads int
	// StackSize is advisory (see DefaultStackSize) and has no effect on
	// scheduling; it is kept for parity with the original API. Neither the
	// scheduler nor the observability adapters read it.
	StackSize int

	Logger       Logger
	Metrics      Metrics
	PanicHandler PanicHandler
}

// Option mutates a Config being built by NewConfig.
type Option func(*Config)

// WithQuantumMicros sets the quantum length.
func WithQuantumMicros(micros int64) Option {
	return func(c *Config) { c.QuantumMicros = micros }
}

// WithMaxThreads sets the exclusive id upper bound.
func WithMaxThreads(n int) Option {
	return func(c *Config) { c.MaxThreads = n }
}

// WithStackSize sets the advisory per-thread stack size.
func WithStackSize(bytes int) Option {
	return func(c *Config) { c.StackSize = bytes }
}

// WithLogger overrides the default logger.
func WithLogger(l Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithMetrics overrides the default (no-op) metrics sink.
func WithMetrics(m Metrics) Option {
	return func(c *Config) { c.Metrics = m }
}

// WithPanicHandler overrides the default panic handler.
func WithPanicHandler(h PanicHandler) Option {
	return func(c *Config) { c.PanicHandler = h }
}

// NewConfig builds a Config from options, applying defaults for anything
// left unset.
func NewConfig(opts ...Option) Config {
	c := Config{}
	for _, opt := range opts {
		opt(&c)
	}
	return c.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.MaxThreads <= 0 {
		c.MaxThreads = DefaultMaxThreads
	}
	if c.StackSize <= 0 {
		c.StackSize = DefaultStackSize
	}
	if c.Logger == nil {
		c.Logger = NewNoOpLogger()
	}
	if c.Metrics == nil {
		c.Metrics = NilMetrics{}
	}
	if c.PanicHandler == nil {
		c.PanicHandler = &DefaultPanicHandler{Logger: c.Logger}
	}
	return c
}
