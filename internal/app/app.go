// Package app drives the finger counting pipeline from a frame source and
// publishes its results.
package app

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"github.com/ayusman/fingercount/internal/capture"
	"github.com/ayusman/fingercount/internal/config"
	"github.com/ayusman/fingercount/internal/logging"
	"github.com/ayusman/fingercount/internal/render"
)

// DefaultJPEGQuality is used for preview frames when Config leaves it unset.
const DefaultJPEGQuality = 75

// ErrCameraBusy is returned by Start when another instance holds the camera lock.
var ErrCameraBusy = errors.New("camera is in use by another fingercount instance")

// Config holds configuration options for the application.
type Config struct {
	Detection config.Detection
	Camera    capture.Camera
	// FPS paces the processing loop. Zero uses capture.DefaultFPS.
	FPS int
	// Preview enables annotated JPEG frames for LatestJPEG.
	Preview     bool
	JPEGQuality int
	// LockPath, when set, guards the camera against a second instance.
	LockPath string
	Logger   zerolog.Logger
}

// Snapshot is the published state after the most recent frame.
type Snapshot struct {
	State         string    `json:"state"`
	Available     bool      `json:"available"`
	Count         int       `json:"count"`
	Raw           int       `json:"raw"`
	Observed      int       `json:"calibration_observed"`
	Quota         int       `json:"calibration_quota"`
	CalibrationID string    `json:"calibration_id"`
	Frames        uint64    `json:"frames"`
	Dropped       uint64    `json:"dropped"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// App owns the frame source, the pipeline controller and the result sinks.
// Frames are processed by one goroutine at a time; everything else reads
// published snapshots.
type App struct {
	config     Config
	logger     zerolog.Logger
	camera     capture.Camera
	controller *Controller
	lock       *flock.Flock

	resetRequested atomic.Bool
	stepMu         sync.Mutex

	mu       sync.RWMutex
	stopCh   chan struct{}
	doneCh   chan struct{}
	snapshot Snapshot
	jpeg     []byte
	frames   uint64
	dropped  uint64

	cbMu      sync.RWMutex
	callbacks []func(Snapshot)
}

// New creates a new App instance with the given configuration.
func New(cfg Config) *App {
	if cfg.FPS <= 0 {
		cfg.FPS = capture.DefaultFPS
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = DefaultJPEGQuality
	}

	a := &App{
		config:     cfg,
		logger:     logging.Component(cfg.Logger, "app"),
		camera:     cfg.Camera,
		controller: NewController(cfg.Detection, cfg.Logger),
	}
	if cfg.LockPath != "" {
		a.lock = flock.New(cfg.LockPath)
	}
	a.snapshot = a.snapshotOf(a.controller.result())
	return a
}

// RegisterCountCallback registers fn to receive a snapshot after every
// processed frame. Callbacks run on the processing goroutine and must not block.
func (a *App) RegisterCountCallback(fn func(Snapshot)) {
	a.cbMu.Lock()
	defer a.cbMu.Unlock()
	a.callbacks = append(a.callbacks, fn)
}

// RequestReset asks for recalibration. The request is picked up before the
// next frame is processed; repeated requests collapse into one.
func (a *App) RequestReset() {
	a.resetRequested.Store(true)
}

// Snapshot returns the state published after the most recent frame.
func (a *App) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot
}

// LatestJPEG returns the most recent annotated preview frame, or nil when
// preview is disabled or nothing has been processed yet.
func (a *App) LatestJPEG() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.jpeg
}

// Step reads one frame and runs it through the pipeline.
//
// It returns capture.ErrEndOfStream when the source is exhausted and
// ErrMalformedFrame when the frame was dropped. Read errors from a live
// device are returned as is; the state is unchanged in every error case.
func (a *App) Step() (Snapshot, error) {
	a.stepMu.Lock()
	defer a.stepMu.Unlock()

	if a.resetRequested.Swap(false) {
		a.controller.Reset()
	}

	frame, err := a.camera.ReadFrame()
	if err != nil {
		return a.Snapshot(), err
	}
	defer frame.Close()

	res, err := a.controller.Process(*frame)
	if err != nil {
		a.mu.Lock()
		a.dropped++
		a.snapshot.Dropped = a.dropped
		snap := a.snapshot
		a.mu.Unlock()
		return snap, err
	}

	var jpeg []byte
	if a.config.Preview {
		annotated := render.Annotate(*frame, render.Overlay{
			Calibrating: res.State == StateCalibrating,
			Observed:    res.Observed,
			Quota:       res.Quota,
			Count:       res.Count,
			Hand:        res.Hand,
		})
		jpeg, err = render.EncodeJPEG(annotated, a.config.JPEGQuality)
		annotated.Close()
		if err != nil {
			a.logger.Warn().Err(err).Msg("preview encode failed")
		}
	}

	a.mu.Lock()
	a.frames++
	snap := a.snapshotOf(res)
	a.snapshot = snap
	if jpeg != nil {
		a.jpeg = jpeg
	}
	a.mu.Unlock()

	a.cbMu.RLock()
	callbacks := a.callbacks
	a.cbMu.RUnlock()
	for _, fn := range callbacks {
		fn(snap)
	}

	return snap, nil
}

// Start opens the camera and begins the processing loop.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Don't start if already running
	if a.stopCh != nil {
		return nil
	}

	if a.lock != nil {
		ok, err := a.lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire camera lock: %w", err)
		}
		if !ok {
			return ErrCameraBusy
		}
	}

	if err := a.camera.Open(); err != nil {
		a.unlock()
		return err
	}
	a.camera.SetFPS(a.config.FPS)

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.run(a.stopCh, a.doneCh)

	a.logger.Info().Int("fps", a.config.FPS).Msg("processing started")
	return nil
}

// Done is closed when the processing loop exits, either after Stop or at
// the end of a file source. It is nil before Start.
func (a *App) Done() <-chan struct{} {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.doneCh
}

// Stop halts the processing loop and releases the camera.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, doneCh := a.stopCh, a.doneCh
	a.stopCh = nil
	a.mu.Unlock()

	if stopCh == nil {
		return
	}

	close(stopCh)
	<-doneCh

	if err := a.camera.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("error closing camera")
	}
	a.unlock()

	a.logger.Info().Msg("processing stopped")
}

// Close stops processing and releases the pipeline's resources.
func (a *App) Close() {
	a.Stop()
	a.controller.Close()
}

// run is the processing loop: one frame per tick, reset sampled before each
// frame, exit on stop or end of stream.
func (a *App) run(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(time.Second / time.Duration(a.config.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			_, err := a.Step()
			switch {
			case err == nil, errors.Is(err, ErrMalformedFrame):
				// Malformed frames are logged by the controller.
			case errors.Is(err, capture.ErrEndOfStream):
				a.logger.Info().Uint64("frames", a.Snapshot().Frames).Msg("end of stream")
				return
			default:
				a.logger.Warn().Err(err).Msg("error reading frame")
			}
		}
	}
}

func (a *App) unlock() {
	if a.lock == nil {
		return
	}
	if err := a.lock.Unlock(); err != nil {
		a.logger.Warn().Err(err).Msg("failed to release camera lock")
	}
}

// snapshotOf builds a snapshot from a pipeline result. Callers hold a.mu
// or have exclusive access.
func (a *App) snapshotOf(res Result) Snapshot {
	return Snapshot{
		State:         res.State.String(),
		Available:     res.Available,
		Count:         res.Count,
		Raw:           res.Raw,
		Observed:      res.Observed,
		Quota:         res.Quota,
		CalibrationID: res.CalibrationID,
		Frames:        a.frames,
		Dropped:       a.dropped,
		UpdatedAt:     time.Now(),
	}
}
