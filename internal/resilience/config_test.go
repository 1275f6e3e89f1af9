package resilience

import (
	"testing"
	"time"
)

func TestFromRetryConfig_Overrides(t *testing.T) {
	cfg := FromRetryConfig(5, 250, 2000, 3.0, 0.1)
	if cfg.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.MaxAttempts)
	}
	if cfg.InitialBackoff != 250*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 250ms", cfg.InitialBackoff)
	}
	if cfg.MaxBackoff != 2*time.Second {
		t.Errorf("MaxBackoff = %v, want 2s", cfg.MaxBackoff)
	}
	if cfg.Multiplier != 3.0 {
		t.Errorf("Multiplier = %v, want 3.0", cfg.Multiplier)
	}
	if cfg.JitterFraction != 0.1 {
		t.Errorf("JitterFraction = %v, want 0.1", cfg.JitterFraction)
	}
}

func TestFromRetryConfig_KeepsDefaults(t *testing.T) {
	def := DefaultRetryConfig()
	cfg := FromRetryConfig(0, 0, 0, 0, -1)
	if cfg.MaxAttempts != def.MaxAttempts {
		t.Errorf("MaxAttempts = %d, want default %d", cfg.MaxAttempts, def.MaxAttempts)
	}
	if cfg.InitialBackoff != def.InitialBackoff {
		t.Errorf("InitialBackoff = %v, want default %v", cfg.InitialBackoff, def.InitialBackoff)
	}
	if cfg.JitterFraction != def.JitterFraction {
		t.Errorf("JitterFraction = %v, want default %v", cfg.JitterFraction, def.JitterFraction)
	}
}

func TestFromCircuitConfig(t *testing.T) {
	cfg := FromCircuitConfig(8, 20)
	if cfg.FailureThreshold != 8 {
		t.Errorf("FailureThreshold = %d, want 8", cfg.FailureThreshold)
	}
	if cfg.ResetTimeout != 20*time.Second {
		t.Errorf("ResetTimeout = %v, want 20s", cfg.ResetTimeout)
	}

	def := DefaultCircuitBreakerConfig()
	cfg = FromCircuitConfig(0, 0)
	if cfg.FailureThreshold != def.FailureThreshold {
		t.Errorf("FailureThreshold = %d, want default %d", cfg.FailureThreshold, def.FailureThreshold)
	}
	if cfg.ResetTimeout != def.ResetTimeout {
		t.Errorf("ResetTimeout = %v, want default %v", cfg.ResetTimeout, def.ResetTimeout)
	}
}
