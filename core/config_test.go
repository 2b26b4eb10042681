package core

import "testing"

func TestNewConfigDefaults(t *testing.T) {
	c := NewConfig()
	if c.MaxThreads != DefaultMaxThreads {
		t.Errorf("MaxThreads = %d, want %d", c.MaxThreads, DefaultMaxThreads)
	}
	if c.StackSize != DefaultStackSize {
		t.Errorf("StackSize = %d, want %d", c.StackSize, DefaultStackSize)
	}
	if c.Logger == nil {
		t.Error("Logger default not filled in")
	}
	if c.Metrics == nil {
		t.Error("Metrics default not filled in")
	}
	if c.PanicHandler == nil {
		t.Error("PanicHandler default not filled in")
	}
}

func TestNewConfigOverrides(t *testing.T) {
	c := NewConfig(WithQuantumMicros(5000), WithMaxThreads(8), WithStackSize(4096))
	if c.QuantumMicros != 5000 {
		t.Errorf("QuantumMicros = %d, want 5000", c.QuantumMicros)
	}
	if c.MaxThreads != 8 {
		t.Errorf("MaxThreads = %d, want 8", c.MaxThreads)
	}
	if c.StackSize != 4096 {
		t.Errorf("StackSize = %d, want 4096", c.StackSize)
	}
}

func TestWithDefaultsLeavesExplicitValuesAlone(t *testing.T) {
	c := Config{MaxThreads: 3, StackSize: 128}.withDefaults()
	if c.MaxThreads != 3 {
		t.Errorf("MaxThreads = %d, want 3 (should not be overwritten)", c.MaxThreads)
	}
	if c.StackSize != 128 {
		t.Errorf("StackSize = %d, want 128 (should not be overwritten)", c.StackSize)
	}
}
