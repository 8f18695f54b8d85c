package e2e

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/fingercount/internal/app"
	"github.com/ayusman/fingercount/internal/capture"
	"github.com/ayusman/fingercount/internal/config"
	"github.com/ayusman/fingercount/internal/logging"
	"github.com/ayusman/fingercount/internal/server"
	"github.com/ayusman/fingercount/internal/store"
	"github.com/ayusman/fingercount/internal/testsupport"
)

const quota = 4

// sceneCamera returns a camera playing empty frames, then hands with the
// given finger counts, then trailing empty frames.
func sceneCamera(t *testing.T, leading int, fingers []int, trailing int) *capture.MockCamera {
	t.Helper()
	var frames []*gocv.Mat
	add := func(m gocv.Mat) { frames = append(frames, &m) }
	for i := 0; i < leading; i++ {
		add(testsupport.EmptyScene())
	}
	for _, n := range fingers {
		add(testsupport.HandFrame(n))
	}
	for i := 0; i < trailing; i++ {
		add(testsupport.EmptyScene())
	}
	t.Cleanup(func() {
		for _, m := range frames {
			m.Close()
		}
	})

	cam := capture.NewMockCamera(frames, false)
	if err := cam.Open(); err != nil {
		t.Fatalf("cam.Open() error = %v", err)
	}
	return cam
}

func getCount(t *testing.T, client *http.Client, base string) app.Snapshot {
	t.Helper()
	resp, err := client.Get(base + "/api/count")
	if err != nil {
		t.Fatalf("get count error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var snap app.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode count error = %v", err)
	}
	return snap
}

func step(t *testing.T, a *app.App, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := a.Step(); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
	}
}

func TestE2E_CalibrateCountReset(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	s, err := store.New(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	detection := config.DefaultDetection()
	detection.CalibrationFrameQuota = quota

	application := app.New(app.Config{
		Detection: detection,
		Camera:    sceneCamera(t, quota, []int{5, 5, 5}, 2),
		Preview:   true,
		Logger:    logging.Nop(),
	})
	defer application.Close()

	srv := server.New(server.Config{Source: application, Store: s, Base: config.Default()})
	defer srv.Close()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	t.Run("Calibrating", func(t *testing.T) {
		snap := getCount(t, client, ts.URL)
		if snap.State != "calibrating" || snap.Available {
			t.Fatalf("snapshot = %+v, want calibrating", snap)
		}

		step(t, application, quota-1)
		snap = getCount(t, client, ts.URL)
		if snap.Available || snap.Observed != quota-1 {
			t.Errorf("snapshot = %+v, want %d observed and no count", snap, quota-1)
		}

		step(t, application, 1)
		snap = getCount(t, client, ts.URL)
		if snap.State != "ready" || !snap.Available || snap.Count != 0 {
			t.Errorf("snapshot = %+v, want ready with count 0", snap)
		}
	})

	t.Run("CountOpenHand", func(t *testing.T) {
		step(t, application, 3)
		snap := getCount(t, client, ts.URL)
		if snap.Count != 5 || snap.Raw != 5 {
			t.Errorf("snapshot = %+v, want count 5", snap)
		}
	})

	t.Run("PreviewStream", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
		if err != nil {
			t.Fatalf("build request error = %v", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("stream error = %v", err)
		}
		defer resp.Body.Close()

		line, err := bufio.NewReader(resp.Body).ReadString('\n')
		if err != nil {
			t.Fatalf("read stream error = %v", err)
		}
		if strings.TrimSpace(line) != "--frame" {
			t.Errorf("first line = %q, want --frame", line)
		}
	})

	t.Run("Reset", func(t *testing.T) {
		before := getCount(t, client, ts.URL)

		resp, err := client.Post(ts.URL+"/api/reset", "application/json", nil)
		if err != nil {
			t.Fatalf("reset error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusAccepted)
		}

		step(t, application, 1)
		snap := getCount(t, client, ts.URL)
		if snap.State != "calibrating" || snap.Available || snap.Observed != 1 {
			t.Errorf("snapshot = %+v, want calibrating with 1 observed", snap)
		}
		if snap.CalibrationID == before.CalibrationID {
			t.Error("expected a new calibration id after reset")
		}
	})
}

func TestE2E_StoredSettingsApplyOnRestart(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	s, err := store.New(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	base := config.Default()
	srv := server.New(server.Config{Store: s, Base: base})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/settings/calibration_frame_quota", strings.NewReader(`{"value": "2"}`))
	if err != nil {
		t.Fatalf("build request error = %v", err)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("set setting error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	overrides, err := s.Settings().Map()
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	cfg := base
	if err := cfg.ApplyOverrides(overrides); err != nil {
		t.Fatalf("ApplyOverrides() error = %v", err)
	}

	application := app.New(app.Config{
		Detection: cfg.Detection,
		Camera:    sceneCamera(t, 2, []int{3}, 0),
		Logger:    logging.Nop(),
	})
	defer application.Close()

	step(t, application, 3)
	snap := application.Snapshot()
	if snap.Quota != 2 || !snap.Available || snap.Count != 3 {
		t.Errorf("snapshot = %+v, want quota 2 and count 3", snap)
	}
}
