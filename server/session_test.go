package server

import (
	"testing"
)

// TestAcquire tests basic session acquisition
func TestAcquire(t *testing.T) {
	manager := NewSessionManager("", nil, nil)

	token := manager.Acquire("", "http://localhost:3000", "127.0.0.1:12345")
	if token == "" {
		t.Error("Expected token on first acquisition")
	}

	// Second acquisition should fail (session already claimed)
	if token2 := manager.Acquire("", "http://localhost:3001", "127.0.0.1:12346"); token2 != "" {
		t.Error("Expected empty token on second acquisition (session already claimed)")
	}

	manager.Release(token)
	if token3 := manager.Acquire("", "http://localhost:3002", "127.0.0.1:12347"); token3 == "" {
		t.Error("Expected token after release")
	}
}

// TestAcquireWithAPISecret tests session acquisition with API secret validation
func TestAcquireWithAPISecret(t *testing.T) {
	tests := []struct {
		name        string
		secret      string
		expectToken bool
	}{
		{"Valid secret", "test-secret", true},
		{"Invalid secret", "wrong-secret", false},
		{"No secret", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := NewSessionManager("test-secret", nil, nil)

			token := manager.Acquire(tt.secret, "http://localhost:3000", "127.0.0.1:12345")
			if tt.expectToken && token == "" {
				t.Error("Expected token with valid secret")
			}
			if !tt.expectToken && token != "" {
				t.Error("Expected empty token with invalid secret")
			}
			if manager.Authorize(tt.secret) != tt.expectToken {
				t.Error("Authorize disagrees with Acquire")
			}
		})
	}
}

// TestRelease tests that releasing ends the session and runs the callback once
func TestRelease(t *testing.T) {
	released := 0
	manager := NewSessionManager("", func() { released++ }, nil)

	token := manager.Acquire("", "http://localhost:3000", "127.0.0.1:12345")
	if !manager.Active() {
		t.Fatal("Session should be active after acquisition")
	}

	manager.Release("stale-token")
	if !manager.Active() || released != 0 {
		t.Fatal("Releasing a stale token must not end the session")
	}

	manager.Release(token)
	manager.Release(token)
	if manager.Active() {
		t.Error("Session should be inactive after release")
	}
	if released != 1 {
		t.Errorf("Expected release callback once, got %d", released)
	}
	if manager.Acquire("", "http://localhost:3001", "127.0.0.1:12346") == "" {
		t.Error("Expected a new session after release")
	}
}
