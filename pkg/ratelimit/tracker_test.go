package ratelimit

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// newMemoryTracker returns a tracker backed by in-memory state.
func newMemoryTracker() *Tracker {
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	return NewTracker(nil, logger)
}

func TestUpdateFromHeaders_ValidHeaders(t *testing.T) {
	tests := []struct {
		name            string
		limitHeader     string
		remainHeader    string
		resetHeader     string
		expectedRemain  int
		expectedLimit   int
		expectedHealthy bool
	}{
		{
			name:            "healthy state",
			limitHeader:     "100",
			remainHeader:    "100",
			resetHeader:     "60",
			expectedRemain:  100,
			expectedLimit:   100,
			expectedHealthy: true,
		},
		{
			name:            "warning state",
			limitHeader:     "100",
			remainHeader:    "5",
			resetHeader:     "30",
			expectedRemain:  5,
			expectedLimit:   100,
			expectedHealthy: false,
		},
		{
			name:            "critical state",
			limitHeader:     "100",
			remainHeader:    "1",
			resetHeader:     "45",
			expectedRemain:  1,
			expectedLimit:   100,
			expectedHealthy: false,
		},
		{
			name:            "limit header absent",
			remainHeader:    "50",
			resetHeader:     "60",
			expectedRemain:  50,
			expectedLimit:   0,
			expectedHealthy: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := newMemoryTracker()
			ctx := context.Background()

			headers := http.Header{}
			if tt.limitHeader != "" {
				headers.Set("X-Ratelimit-Limit", tt.limitHeader)
			}
			headers.Set("X-Ratelimit-Remaining", tt.remainHeader)
			headers.Set("X-Ratelimit-Reset", tt.resetHeader)

			if err := tracker.UpdateFromHeaders(ctx, headers); err != nil {
				t.Fatalf("UpdateFromHeaders() error = %v", err)
			}

			state, err := tracker.GetState(ctx)
			if err != nil {
				t.Fatalf("GetState() error = %v", err)
			}

			if state.Remaining != tt.expectedRemain {
				t.Errorf("Remaining = %d, want %d", state.Remaining, tt.expectedRemain)
			}
			if state.Limit != tt.expectedLimit {
				t.Errorf("Limit = %d, want %d", state.Limit, tt.expectedLimit)
			}
			if state.IsHealthy != tt.expectedHealthy {
				t.Errorf("IsHealthy = %v, want %v", state.IsHealthy, tt.expectedHealthy)
			}
		})
	}
}

func TestUpdateFromHeaders_InvalidHeaders(t *testing.T) {
	tracker := newMemoryTracker()

	tests := []struct {
		name         string
		remainHeader string
		resetHeader  string
		shouldError  bool
	}{
		{
			name:         "missing remaining header",
			remainHeader: "",
			resetHeader:  "60",
			shouldError:  false, // Rate limiting disabled upstream
		},
		{
			name:         "invalid remaining header",
			remainHeader: "invalid",
			resetHeader:  "60",
			shouldError:  true,
		},
		{
			name:         "invalid reset header",
			remainHeader: "100",
			resetHeader:  "invalid",
			shouldError:  true,
		},
		{
			name:         "reset header missing",
			remainHeader: "100",
			resetHeader:  "",
			shouldError:  true,
		},
		{
			name:         "both headers missing",
			remainHeader: "",
			resetHeader:  "",
			shouldError:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			if tt.remainHeader != "" {
				headers.Set("X-Ratelimit-Remaining", tt.remainHeader)
			}
			if tt.resetHeader != "" {
				headers.Set("X-Ratelimit-Reset", tt.resetHeader)
			}

			err := tracker.UpdateFromHeaders(context.Background(), headers)

			if tt.shouldError && err == nil {
				t.Error("Expected error but got nil")
			}
			if !tt.shouldError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestGetState_Default(t *testing.T) {
	tracker := newMemoryTracker()

	state, err := tracker.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}

	if !state.IsHealthy {
		t.Error("Default state should be healthy")
	}
	if state.Remaining != 100 {
		t.Errorf("Default Remaining = %d, want 100", state.Remaining)
	}
}

func TestShouldAllowRequest_Healthy(t *testing.T) {
	tracker := newMemoryTracker()
	ctx := context.Background()

	headers := http.Header{}
	headers.Set("X-Ratelimit-Remaining", "90")
	headers.Set("X-Ratelimit-Reset", "60")
	if err := tracker.UpdateFromHeaders(ctx, headers); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	start := time.Now()
	allowed, err := tracker.ShouldAllowRequest(ctx)
	duration := time.Since(start)

	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if !allowed {
		t.Error("ShouldAllowRequest() = false, want true for healthy state")
	}
	if duration > 100*time.Millisecond {
		t.Errorf("ShouldAllowRequest() duration = %v, want < 100ms for healthy state", duration)
	}
}

func TestShouldAllowRequest_Throttled(t *testing.T) {
	tracker := newMemoryTracker()
	ctx := context.Background()

	headers := http.Header{}
	headers.Set("X-Ratelimit-Remaining", "5")
	headers.Set("X-Ratelimit-Reset", "60")
	if err := tracker.UpdateFromHeaders(ctx, headers); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	start := time.Now()
	allowed, err := tracker.ShouldAllowRequest(ctx)
	duration := time.Since(start)

	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if !allowed {
		t.Error("ShouldAllowRequest() = false, want true for warning state")
	}
	if duration < 900*time.Millisecond {
		t.Errorf("ShouldAllowRequest() throttle duration = %v, want >= 1s", duration)
	}
}

func TestShouldAllowRequest_Blocked(t *testing.T) {
	tracker := newMemoryTracker()
	ctx := context.Background()

	headers := http.Header{}
	headers.Set("X-Ratelimit-Remaining", "0")
	headers.Set("X-Ratelimit-Reset", "60")
	if err := tracker.UpdateFromHeaders(ctx, headers); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	allowed, err := tracker.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if allowed {
		t.Error("ShouldAllowRequest() = true, want false for exhausted budget")
	}
}

func TestShouldAllowRequest_BlockedWindowPassed(t *testing.T) {
	tracker := newMemoryTracker()
	ctx := context.Background()

	headers := http.Header{}
	headers.Set("X-Ratelimit-Remaining", "0")
	headers.Set("X-Ratelimit-Reset", "0") // Window resets immediately
	if err := tracker.UpdateFromHeaders(ctx, headers); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	allowed, err := tracker.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if !allowed {
		t.Error("ShouldAllowRequest() = false, want true once the window has reset")
	}
}

func TestShouldAllowRequest_ThrottleCancelled(t *testing.T) {
	tracker := newMemoryTracker()

	headers := http.Header{}
	headers.Set("X-Ratelimit-Remaining", "5")
	headers.Set("X-Ratelimit-Reset", "60")
	if err := tracker.UpdateFromHeaders(context.Background(), headers); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	allowed, err := tracker.ShouldAllowRequest(ctx)
	if allowed {
		t.Error("ShouldAllowRequest() = true, want false when cancelled mid-throttle")
	}
	if err == nil {
		t.Error("ShouldAllowRequest() error = nil, want context error")
	}
}
