// Package capture reads frames from a camera device or a video file using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

// Default capture settings
const (
	DefaultFPS    = 15
	DefaultWidth  = 640
	DefaultHeight = 480
)

// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
var ErrCameraNotOpen = errors.New("camera is not open")

// ErrEndOfStream is returned once a video file or a non-looping mock has no
// more frames.
var ErrEndOfStream = errors.New("end of stream")

// ErrReadFailed is returned when a live device yields no frame.
var ErrReadFailed = errors.New("failed to read frame from camera")

// Camera defines the interface for frame source implementations.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// Options configures a Camera.
type Options struct {
	Width  int
	Height int
	FPS    int
	// Mirror flips frames horizontally, giving a selfie view.
	Mirror bool
}

// cameraImpl manages video capture from a device or a file using GoCV.
type cameraImpl struct {
	deviceID int
	path     string // set for file sources
	opts     Options
	capture  *gocv.VideoCapture
	mu       sync.Mutex
	running  bool
	fps      int
}

// NewCamera creates a Camera for source, which is either a device index
// such as "0" or a path to a video file. Zero options take the defaults.
func NewCamera(source string, opts Options) Camera {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}

	c := &cameraImpl{
		opts: opts,
		fps:  opts.FPS,
	}
	source = strings.TrimSpace(source)
	if id, err := strconv.Atoi(source); err == nil {
		c.deviceID = id
	} else {
		c.path = source
	}
	return c
}

// IsFile reports whether source names a video file rather than a device index.
func IsFile(source string) bool {
	_, err := strconv.Atoi(strings.TrimSpace(source))
	return err != nil
}

// Open opens the device or file for capturing frames.
// Devices are asked for the configured resolution and frame rate.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	var (
		capture *gocv.VideoCapture
		err     error
	)
	if c.path != "" {
		capture, err = gocv.OpenVideoCapture(c.path)
	} else {
		capture, err = gocv.OpenVideoCapture(c.deviceID)
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", c.describe(), err)
	}

	if c.path == "" {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(c.opts.Width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(c.opts.Height))
		capture.Set(gocv.VideoCaptureFPS, float64(c.fps))
	}

	c.capture = capture
	c.running = true

	return nil
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame, mirrored if configured.
// The caller is responsible for closing the returned Mat.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		if c.path != "" {
			return nil, ErrEndOfStream
		}
		return nil, ErrReadFailed
	}

	if c.opts.Mirror {
		Mirror(&mat)
	}

	return &mat, nil
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil && c.path == "" {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}

func (c *cameraImpl) describe() string {
	if c.path != "" {
		return "video file " + c.path
	}
	return "camera " + strconv.Itoa(c.deviceID)
}

// Mirror flips mat around its vertical axis in place.
func Mirror(mat *gocv.Mat) {
	flipped := gocv.NewMat()
	gocv.Flip(*mat, &flipped, 1)
	mat.Close()
	*mat = flipped
}
