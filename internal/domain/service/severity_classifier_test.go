package service

import (
	"math"
	"testing"

	"github.com/dreschagin/risk-dashboard/internal/domain/valueobject"
)

type recordingWarner struct {
	messages []string
}

func (w *recordingWarner) Warn(msg string, args ...interface{}) {
	w.messages = append(w.messages, msg)
}

func TestSeverityClassifierWarnsOnNaN(t *testing.T) {
	w := &recordingWarner{}
	c := NewSeverityClassifier(w)

	if got := c.Classify(math.NaN()); got != valueobject.RiskNormal {
		t.Fatalf("expected normal for NaN, got %s", got)
	}
	if len(w.messages) != 1 {
		t.Fatalf("expected one warning, got %d", len(w.messages))
	}

	c.Classify(95)
	if len(w.messages) != 1 {
		t.Fatal("finite score must not warn")
	}
}

func TestSeverityClassifierNilLogger(t *testing.T) {
	c := NewSeverityClassifier(nil)
	if got := c.Classify(math.NaN()); got != valueobject.RiskNormal {
		t.Fatalf("expected normal, got %s", got)
	}
}

func TestAttentionStatus(t *testing.T) {
	c := NewSeverityClassifier(nil)
	if got := c.AttentionStatus(78); got != "Immediate Attention Required" {
		t.Fatalf("unexpected status for 78: %q", got)
	}
	if got := c.AttentionStatus(75); got != "Normal" {
		t.Fatalf("unexpected status for 75: %q", got)
	}
}

func TestBarWidth(t *testing.T) {
	tests := map[float64]float64{
		-3:  0,
		0:   0,
		42:  42,
		100: 100,
		140: 100,
	}
	for in, want := range tests {
		if got := BarWidth(in); got != want {
			t.Fatalf("BarWidth(%v) = %v, want %v", in, got, want)
		}
	}
	if got := BarWidth(math.NaN()); got != 0 {
		t.Fatalf("BarWidth(NaN) = %v", got)
	}
}
