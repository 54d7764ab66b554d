package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/remakesof/launcher/internal/transfer"
)

func TestFormatSample(t *testing.T) {
	tests := []struct {
		name   string
		sample transfer.Sample
		want   []string
	}{
		{
			name:   "known total",
			sample: transfer.Sample{Transferred: 500_000, Total: 1_000_000, Percent: 50, BytesPerSecond: 100_000},
			want:   []string{"500 kB / 1.0 MB", "50.0%", "100 kB/s", "5s left"},
		},
		{
			name:   "unknown total",
			sample: transfer.Sample{Transferred: 2_000_000, BytesPerSecond: 1000},
			want:   []string{"2.0 MB", "1.0 kB/s"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatSample(tt.sample)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("FormatSample() = %q, missing %q", got, w)
				}
			}
		})
	}
}

func TestETA(t *testing.T) {
	if _, ok := ETA(transfer.Sample{Transferred: 10}); ok {
		t.Error("indeterminate sample should have no ETA")
	}
	if _, ok := ETA(transfer.Sample{Transferred: 10, Total: 100}); ok {
		t.Error("stalled transfer should have no ETA")
	}
	eta, ok := ETA(transfer.Sample{Transferred: 40, Total: 100, BytesPerSecond: 20})
	if !ok || eta != 3*time.Second {
		t.Errorf("ETA() = %v, %v, want 3s", eta, ok)
	}
}

func TestModel_TickReadsLatestSample(t *testing.T) {
	sink := &transfer.LatestSink{}
	m := NewModel("Installing 1.2.0", sink, nil)

	if !strings.Contains(m.View(), "Connecting") {
		t.Error("view should show connecting before the first sample")
	}

	sink.OnProgress(transfer.Sample{Transferred: 250, Total: 1000, Percent: 25})
	updated, cmd := m.Update(tickMsg(time.Now()))
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}

	view := updated.View()
	if !strings.Contains(view, "Installing 1.2.0") || !strings.Contains(view, "25.0%") {
		t.Errorf("unexpected view: %q", view)
	}
}

func TestModel_QuitCancelsInstall(t *testing.T) {
	canceled := false
	m := NewModel("x", &transfer.LatestSink{}, func() { canceled = true })

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if !canceled || !updated.(Model).Canceled() {
		t.Error("quitting mid-install should cancel it")
	}
}

func TestModel_Done(t *testing.T) {
	canceled := false
	m := NewModel("x", &transfer.LatestSink{}, func() { canceled = true })
	m.source.OnProgress(transfer.Sample{Transferred: 1000, Total: 1000, Percent: 100})

	updated, cmd := m.Update(DoneMsg{Err: errors.New("checksum mismatch")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if !strings.Contains(updated.View(), "checksum mismatch") {
		t.Errorf("view should show the error: %q", updated.View())
	}

	updated, _ = updated.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if canceled || updated.(Model).Canceled() {
		t.Error("quitting after completion must not cancel")
	}
}
