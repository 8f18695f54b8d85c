// Package config holds the tunable settings of the finger counting pipeline
// and the runtime around it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ErrInvalid is returned when a configuration value fails validation.
var ErrInvalid = errors.New("invalid configuration")

// Detection holds the named numeric options of the detection pipeline.
// They are read once at startup and threaded through every stage.
type Detection struct {
	// BackgroundDiffThreshold is the grayscale difference a pixel must exceed
	// to be considered foreground.
	BackgroundDiffThreshold float64 `toml:"background_diff_threshold"`

	// SkinLowerBound and SkinUpperBound are inclusive Y, Cr, Cb bounds.
	SkinLowerBound [3]float64 `toml:"skin_lower_bound"`
	SkinUpperBound [3]float64 `toml:"skin_upper_bound"`

	// MinContourArea rejects blobs smaller than this many square pixels.
	MinContourArea float64 `toml:"min_contour_area"`

	// DefectMinDepth is the depth in pixels a convexity defect must exceed.
	DefectMinDepth float64 `toml:"defect_min_depth"`

	// DefectMaxAngleDeg is the angle a defect must stay below to count as a
	// valley between two fingers.
	DefectMaxAngleDeg float64 `toml:"defect_max_angle_deg"`

	HistoryWindowSize     int `toml:"history_window_size"`
	CalibrationFrameQuota int `toml:"calibration_frame_quota"`

	// MorphKernelSize is the side of the square structuring element used to
	// clean the combined mask.
	MorphKernelSize int `toml:"morph_kernel_size"`

	// BackgroundBlurSize is the Gaussian kernel applied before differencing.
	// Zero disables blurring.
	BackgroundBlurSize int `toml:"background_blur_size"`
}

// Capture configures the frame source.
type Capture struct {
	// Source is a camera device index ("0") or a video file path.
	Source string `toml:"source"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	FPS    int    `toml:"fps"`
	Mirror bool   `toml:"mirror"`
}

// Server configures the HTTP surface.
type Server struct {
	Addr      string `toml:"addr"`
	Preview   bool   `toml:"preview"`
	StaticDir string `toml:"static_dir"`
}

// Logging configures log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Storage configures where settings and lock files live.
type Storage struct {
	DataDir string `toml:"data_dir"`
}

// Config is the complete application configuration.
type Config struct {
	Detection Detection `toml:"detection"`
	Capture   Capture   `toml:"capture"`
	Server    Server    `toml:"server"`
	Logging   Logging   `toml:"logging"`
	Storage   Storage   `toml:"storage"`
}

// DefaultDetection returns the detection options tuned for a 640x480 webcam.
func DefaultDetection() Detection {
	return Detection{
		BackgroundDiffThreshold: 25,
		SkinLowerBound:          [3]float64{0, 133, 77},
		SkinUpperBound:          [3]float64{235, 173, 127},
		MinContourArea:          5000,
		DefectMinDepth:          10,
		DefectMaxAngleDeg:       90,
		HistoryWindowSize:       5,
		CalibrationFrameQuota:   30,
		MorphKernelSize:         5,
		BackgroundBlurSize:      5,
	}
}

// Default returns a Config with sensible default values.
func Default() Config {
	return Config{
		Detection: DefaultDetection(),
		Capture: Capture{
			Source: "0",
			Width:  640,
			Height: 480,
			FPS:    15,
			Mirror: true,
		},
		Server: Server{
			Addr:    ":8080",
			Preview: true,
		},
		Logging: Logging{
			Level:  "info",
			Format: "auto",
		},
		Storage: Storage{
			DataDir: "~/.fingercount",
		},
	}
}

// Load reads the TOML file at path over the defaults, expands paths and
// validates the result. A missing file is not an error: the defaults are
// returned and exists reports false.
func Load(path string) (cfg Config, exists bool, err error) {
	cfg = Default()

	if path != "" {
		file, err := os.Open(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, false, fmt.Errorf("open config: %w", err)
		default:
			defer file.Close()
			exists = true
			if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
				return cfg, true, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	dataDir, err := ExpandPath(cfg.Storage.DataDir)
	if err != nil {
		return cfg, exists, err
	}
	cfg.Storage.DataDir = dataDir

	if err := cfg.Validate(); err != nil {
		return cfg, exists, err
	}
	return cfg, exists, nil
}

// DefaultPath returns the default configuration file location.
func DefaultPath() (string, error) {
	return ExpandPath("~/.fingercount/config.toml")
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// DatabasePath returns the settings database location inside the data dir.
func (c Config) DatabasePath() string {
	return filepath.Join(c.Storage.DataDir, "fingercount.db")
}

// LockPath returns the camera lock file location inside the data dir.
func (c Config) LockPath() string {
	return filepath.Join(c.Storage.DataDir, "fingercount.lock")
}

// Validate checks every section of the configuration.
func (c Config) Validate() error {
	if err := c.Detection.Validate(); err != nil {
		return err
	}
	if c.Capture.FPS <= 0 {
		return fmt.Errorf("%w: capture.fps must be positive", ErrInvalid)
	}
	if c.Capture.Width < 0 || c.Capture.Height < 0 {
		return fmt.Errorf("%w: capture dimensions must not be negative", ErrInvalid)
	}
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("%w: logging.format %q", ErrInvalid, c.Logging.Format)
	}
	return nil
}

// Validate checks the detection options for values the pipeline cannot run with.
func (d Detection) Validate() error {
	if d.BackgroundDiffThreshold < 0 || d.BackgroundDiffThreshold > 255 {
		return fmt.Errorf("%w: background_diff_threshold must be within [0, 255]", ErrInvalid)
	}
	for i := range d.SkinLowerBound {
		lo, hi := d.SkinLowerBound[i], d.SkinUpperBound[i]
		if lo < 0 || hi > 255 || lo > hi {
			return fmt.Errorf("%w: skin bound channel %d [%v, %v]", ErrInvalid, i, lo, hi)
		}
	}
	if d.MinContourArea < 0 {
		return fmt.Errorf("%w: min_contour_area must not be negative", ErrInvalid)
	}
	if d.DefectMinDepth < 0 {
		return fmt.Errorf("%w: defect_min_depth must not be negative", ErrInvalid)
	}
	if d.DefectMaxAngleDeg <= 0 || d.DefectMaxAngleDeg > 180 {
		return fmt.Errorf("%w: defect_max_angle_deg must be within (0, 180]", ErrInvalid)
	}
	if d.HistoryWindowSize < 1 {
		return fmt.Errorf("%w: history_window_size must be at least 1", ErrInvalid)
	}
	if d.CalibrationFrameQuota < 1 {
		return fmt.Errorf("%w: calibration_frame_quota must be at least 1", ErrInvalid)
	}
	if d.MorphKernelSize < 1 {
		return fmt.Errorf("%w: morph_kernel_size must be at least 1", ErrInvalid)
	}
	if d.BackgroundBlurSize < 0 || (d.BackgroundBlurSize > 0 && d.BackgroundBlurSize%2 == 0) {
		return fmt.Errorf("%w: background_blur_size must be zero or odd", ErrInvalid)
	}
	return nil
}
