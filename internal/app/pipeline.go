package app

import (
	"errors"
	"fmt"
	"image"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/ayusman/fingercount/internal/config"
	"github.com/ayusman/fingercount/internal/detector"
	"github.com/ayusman/fingercount/internal/gesture"
	"github.com/ayusman/fingercount/internal/logging"
	"github.com/ayusman/fingercount/internal/segment"
)

// ErrMalformedFrame is returned for frames the pipeline cannot process:
// empty, not 3-channel 8-bit, or sized differently from the session.
var ErrMalformedFrame = errors.New("malformed frame")

// State is the calibration state of the pipeline.
type State int

const (
	// StateCalibrating means frames only feed the background model.
	StateCalibrating State = iota
	// StateReady means frames run the full counting pipeline.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateCalibrating:
		return "calibrating"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Result is the outcome of processing one frame.
type Result struct {
	State State
	// Available is false while calibrating; Count is 0 then.
	Available bool
	// Count is the stable finger count.
	Count int
	// Raw is this frame's unsmoothed count.
	Raw int
	// Hand is the geometry behind Raw. Its Contour is nil when no hand was found.
	Hand detector.Hand

	Observed      int
	Quota         int
	CalibrationID string
}

// Controller runs the per-frame pipeline and owns its state.
//
// Pipeline logic:
// 1. Reject malformed frames without touching any state
// 2. While calibrating, feed the frame to the background model only
// 3. Switch to ready as soon as the calibration quota is met
// 4. When ready: foreground and skin masks, combine, largest region,
// hull geometry, then push the raw count into the stabilizer
//
// A Controller is not safe for concurrent use. One goroutine feeds it frames.
type Controller struct {
	logger zerolog.Logger

	background *segment.BackgroundModel
	skin       *segment.SkinSegmenter
	combiner   *segment.MaskCombiner
	analyzer   *detector.Analyzer
	stabilizer *gesture.Stabilizer
	minArea    float64

	state         State
	size          image.Point // session frame size, zero until the first valid frame
	calibrationID string
	lastStable    int
}

// NewController builds a controller from the detection settings. The
// settings are expected to have passed validation.
func NewController(cfg config.Detection, logger zerolog.Logger) *Controller {
	c := &Controller{
		logger:     logging.Component(logger, "pipeline"),
		background: segment.NewBackgroundModel(cfg.BackgroundDiffThreshold, cfg.BackgroundBlurSize, cfg.CalibrationFrameQuota),
		skin:       segment.NewSkinSegmenter(cfg.SkinLowerBound, cfg.SkinUpperBound),
		combiner:   segment.NewMaskCombiner(cfg.MorphKernelSize),
		analyzer:   detector.NewAnalyzer(cfg.MinContourArea, cfg.DefectMinDepth, cfg.DefectMaxAngleDeg),
		stabilizer: gesture.NewStabilizer(cfg.HistoryWindowSize),
		minArea:    cfg.MinContourArea,
	}
	c.enterCalibration("startup")
	return c
}

// Process runs one frame through the pipeline. The frame is not modified.
// On ErrMalformedFrame the returned Result describes the unchanged state.
func (c *Controller) Process(frame gocv.Mat) (Result, error) {
	if err := c.validate(frame); err != nil {
		c.logger.Warn().Err(err).Msg("dropping frame")
		return c.result(), err
	}
	if c.size == (image.Point{}) {
		c.size = image.Pt(frame.Cols(), frame.Rows())
		c.logger.Info().Int("width", c.size.X).Int("height", c.size.Y).Msg("session frame size")
	}

	if c.state == StateCalibrating {
		c.calibrate(frame)
		return c.result(), nil
	}

	fg, err := c.background.ForegroundMask(frame)
	defer fg.Close()
	if errors.Is(err, segment.ErrNotReady) {
		c.enterCalibration("background reference missing")
		c.calibrate(frame)
		return c.result(), nil
	}

	skin := c.skin.SkinMask(frame)
	defer skin.Close()

	combined, err := c.combiner.Combine(fg, skin)
	defer combined.Close()
	if err != nil {
		return c.result(), fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	var hand detector.Hand
	if region, ok := detector.LargestRegion(combined, c.minArea); ok {
		hand = c.analyzer.Analyze(region.Contour)
	}

	c.stabilizer.Push(hand.Count)
	stable := c.stabilizer.Stable()
	if stable != c.lastStable {
		c.logger.Debug().Int("from", c.lastStable).Int("to", stable).Int("raw", hand.Count).Msg("stable count changed")
		c.lastStable = stable
	}

	res := c.result()
	res.Raw = hand.Count
	res.Hand = hand
	return res, nil
}

// Reset discards the background reference and the count history and
// restarts calibration. Calling it while calibrating restarts the quota.
func (c *Controller) Reset() {
	c.enterCalibration("reset")
}

// State returns the current pipeline state.
func (c *Controller) State() State {
	return c.state
}

// StableCount returns the stable count and whether it is available.
func (c *Controller) StableCount() (int, bool) {
	if c.state != StateReady {
		return 0, false
	}
	return c.stabilizer.Stable(), true
}

// Close releases the OpenCV resources held by the pipeline stages.
func (c *Controller) Close() {
	c.background.Close()
	c.combiner.Close()
}

func (c *Controller) calibrate(frame gocv.Mat) {
	c.background.Observe(frame)
	if !c.background.Calibrated() {
		return
	}

	c.state = StateReady
	observed, _ := c.background.Progress()
	c.logger.Info().
		Str("calibration_id", c.calibrationID).
		Int("frames", observed).
		Msg("calibration complete")
}

func (c *Controller) enterCalibration(reason string) {
	c.background.Reset()
	c.stabilizer.Reset()
	c.state = StateCalibrating
	c.lastStable = 0
	c.calibrationID = uuid.NewString()

	_, quota := c.background.Progress()
	c.logger.Info().
		Str("calibration_id", c.calibrationID).
		Str("reason", reason).
		Int("quota", quota).
		Msg("calibration started")
}

func (c *Controller) validate(frame gocv.Mat) error {
	if frame.Empty() {
		return fmt.Errorf("%w: empty", ErrMalformedFrame)
	}
	if frame.Type() != gocv.MatTypeCV8UC3 {
		return fmt.Errorf("%w: type %v, want 8-bit BGR", ErrMalformedFrame, frame.Type())
	}
	size := image.Pt(frame.Cols(), frame.Rows())
	if c.size != (image.Point{}) && size != c.size {
		return fmt.Errorf("%w: %dx%d, session is %dx%d", ErrMalformedFrame, size.X, size.Y, c.size.X, c.size.Y)
	}
	return nil
}

func (c *Controller) result() Result {
	observed, quota := c.background.Progress()
	res := Result{
		State:         c.state,
		Observed:      observed,
		Quota:         quota,
		CalibrationID: c.calibrationID,
	}
	res.Count, res.Available = c.StableCount()
	return res
}
