package device

import (
	"testing"
	"time"
)

func TestParseRelayState(t *testing.T) {
	tests := []struct {
		in     string
		want   RelayState
		wantOK bool
	}{
		{"on", RelayOn, true},
		{"off", RelayOff, true},
		{"ON", "", false},
		{"", "", false},
		{"toggle", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseRelayState(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseRelayState(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestLaterOf(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)

	if got := LaterOf(t1, t2); !got.Equal(t2) {
		t.Errorf("LaterOf(t1, t2) = %v", got)
	}
	if got := LaterOf(t2, t1); !got.Equal(t2) {
		t.Errorf("LaterOf(t2, t1) = %v, last_seen moved backward", got)
	}
	if got := LaterOf(time.Time{}, t1); !got.Equal(t1) {
		t.Errorf("LaterOf(zero, t1) = %v", got)
	}
}
