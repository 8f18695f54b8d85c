package tray

import "testing"

func TestLabels(t *testing.T) {
	tests := []struct {
		name       string
		count      int
		available  bool
		observed   int
		quota      int
		wantTitle  string
		wantStatus string
	}{
		{name: "calibration start", available: false, observed: 0, quota: 30, wantTitle: "…", wantStatus: "Calibrating 0%"},
		{name: "calibration halfway", available: false, observed: 15, quota: 30, wantTitle: "…", wantStatus: "Calibrating 50%"},
		{name: "zero quota", available: false, wantTitle: "…", wantStatus: "Calibrating 0%"},
		{name: "no hand", count: 0, available: true, wantTitle: "0", wantStatus: "0 fingers"},
		{name: "one finger", count: 1, available: true, wantTitle: "1", wantStatus: "1 finger"},
		{name: "open hand", count: 5, available: true, wantTitle: "5", wantStatus: "5 fingers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, status := Labels(tt.count, tt.available, tt.observed, tt.quota)
			if title != tt.wantTitle {
				t.Errorf("title = %q, want %q", title, tt.wantTitle)
			}
			if status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status, tt.wantStatus)
			}
		})
	}
}

func TestTray_SetCountBeforeRun(t *testing.T) {
	tr := New()
	if got := tr.Status(); got != "Calibrating" {
		t.Errorf("initial Status() = %q, want %q", got, "Calibrating")
	}

	// Without a running tray only the cached labels change.
	tr.SetCount(3, true, 30, 30)
	if got := tr.Status(); got != "3 fingers" {
		t.Errorf("Status() = %q, want %q", got, "3 fingers")
	}
}

func TestTray_InvokeCallbacks(t *testing.T) {
	tr := New()

	var recalibrated, previewed int
	tr.OnRecalibrate(func() { recalibrated++ })
	tr.OnPreview(func() { previewed++ })

	tr.invoke(func() func() { return tr.onRecalibrate })
	tr.invoke(func() func() { return tr.onRecalibrate })
	tr.invoke(func() func() { return tr.onPreview })
	tr.invoke(func() func() { return tr.onQuit })

	if recalibrated != 2 {
		t.Errorf("recalibrate called %d times, want 2", recalibrated)
	}
	if previewed != 1 {
		t.Errorf("preview called %d times, want 1", previewed)
	}
}
