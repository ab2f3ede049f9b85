package auth

import "testing"

func TestLimiterPoolKeysAreIndependent(t *testing.T) {
	var cfg SecConfig
	cfg.RPS = 1
	cfg.Burst = 1
	p := &limiterPool{cfg: cfg}

	if !p.Allow("key-a") {
		t.Fatal("first request for key-a rejected")
	}
	if p.Allow("key-a") {
		t.Fatal("second request for key-a admitted past burst")
	}
	// A different caller gets a fresh bucket.
	if !p.Allow("key-b") {
		t.Fatal("first request for key-b rejected")
	}
}

func TestLimiterPoolDefaults(t *testing.T) {
	p := &limiterPool{}
	if got := p.rps(); got != defaultRPS {
		t.Fatalf("rps = %v", got)
	}
	if got := p.burst(); got != defaultBurst {
		t.Fatalf("burst = %d", got)
	}
	for i := 0; i < defaultBurst; i++ {
		if !p.Allow("k") {
			t.Fatalf("request %d rejected inside default burst", i)
		}
	}
}
