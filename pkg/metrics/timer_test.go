package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewTimer(t *testing.T) {
	timer := NewTimer()

	if timer == nil {
		t.Fatal("NewTimer() returned nil")
	}

	if timer.start.IsZero() {
		t.Error("NewTimer() start time is zero")
	}

	if time.Since(timer.start) > time.Second {
		t.Error("NewTimer() start time is not recent")
	}
}

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()

	sleepDuration := 50 * time.Millisecond
	time.Sleep(sleepDuration)

	duration := timer.Duration()

	if duration < sleepDuration {
		t.Errorf("Timer.Duration() = %v, want >= %v", duration, sleepDuration)
	}

	if duration > 2*sleepDuration {
		t.Errorf("Timer.Duration() = %v, want < %v", duration, 2*sleepDuration)
	}
}

func TestTimerObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_facade_operation_duration_seconds",
		Help:    "Test duration histogram",
		Buckets: prometheus.DefBuckets,
	})

	timer := NewTimer()
	time.Sleep(20 * time.Millisecond)

	timer.ObserveDuration(histogram)

	if timer.Duration() == 0 {
		t.Error("Timer.ObserveDuration() recorded zero duration")
	}
}

func TestTimerObserveDurationVec(t *testing.T) {
	histogramVec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "test_facade_operation_duration_vec_seconds",
			Help:    "Test duration histogram vec",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	timer := NewTimer()
	time.Sleep(20 * time.Millisecond)

	timer.ObserveDurationVec(histogramVec, "upsert_raw_rows")

	if timer.Duration() == 0 {
		t.Error("Timer.ObserveDurationVec() recorded zero duration")
	}
}

func TestTimerMultipleCalls(t *testing.T) {
	timer := NewTimer()

	time.Sleep(20 * time.Millisecond)
	duration1 := timer.Duration()

	time.Sleep(20 * time.Millisecond)
	duration2 := timer.Duration()

	if duration2 <= duration1 {
		t.Errorf("second Duration() call should be longer: first=%v, second=%v", duration1, duration2)
	}
}

func TestMultipleTimers(t *testing.T) {
	timer1 := NewTimer()
	time.Sleep(20 * time.Millisecond)

	timer2 := NewTimer()
	time.Sleep(20 * time.Millisecond)

	if timer1.Duration() <= timer2.Duration() {
		t.Errorf("timer1 should be running longer: timer1=%v, timer2=%v", timer1.Duration(), timer2.Duration())
	}
}
