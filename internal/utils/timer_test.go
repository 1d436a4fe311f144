package utils

import (
	"testing"
	"time"
)

// ========== Timer ==========

func TestTimer_StopReturnsElapsed(t *testing.T) {
	timer := NewTimer()
	time.Sleep(time.Millisecond)

	elapsed := timer.Stop()
	if elapsed <= 0 {
		t.Errorf("expected a positive latency, got %v", elapsed)
	}

	if timer.GetDuration() != elapsed {
		t.Errorf("GetDuration must report the captured value, got %v want %v", timer.GetDuration(), elapsed)
	}
}

func TestTimer_ZeroBeforeStop(t *testing.T) {
	timer := NewTimer()

	if timer.GetDuration() != 0 {
		t.Errorf("expected zero before Stop, got %v", timer.GetDuration())
	}
}

func TestTimer_StartResetsMeasurement(t *testing.T) {
	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	first := timer.Stop()

	timer.Start()
	second := timer.Stop()

	if second >= first {
		t.Errorf("restart must discard the earlier interval: %v >= %v", second, first)
	}
}
