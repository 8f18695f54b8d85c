package config

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Option is a single named numeric detection setting.
type Option struct {
	Key   string
	Value float64
	// Integer reports whether the option only accepts whole numbers.
	Integer bool
}

type optionField struct {
	integer bool
	get     func(d *Detection) float64
	set     func(d *Detection, v float64)
}

func floatField(p func(d *Detection) *float64) optionField {
	return optionField{
		get: func(d *Detection) float64 { return *p(d) },
		set: func(d *Detection, v float64) { *p(d) = v },
	}
}

func intField(p func(d *Detection) *int) optionField {
	return optionField{
		integer: true,
		get:     func(d *Detection) float64 { return float64(*p(d)) },
		set:     func(d *Detection, v float64) { *p(d) = int(v) },
	}
}

var optionFields = map[string]optionField{
	"background_diff_threshold": floatField(func(d *Detection) *float64 { return &d.BackgroundDiffThreshold }),
	"skin_lower_y":              floatField(func(d *Detection) *float64 { return &d.SkinLowerBound[0] }),
	"skin_lower_cr":             floatField(func(d *Detection) *float64 { return &d.SkinLowerBound[1] }),
	"skin_lower_cb":             floatField(func(d *Detection) *float64 { return &d.SkinLowerBound[2] }),
	"skin_upper_y":              floatField(func(d *Detection) *float64 { return &d.SkinUpperBound[0] }),
	"skin_upper_cr":             floatField(func(d *Detection) *float64 { return &d.SkinUpperBound[1] }),
	"skin_upper_cb":             floatField(func(d *Detection) *float64 { return &d.SkinUpperBound[2] }),
	"min_contour_area":          floatField(func(d *Detection) *float64 { return &d.MinContourArea }),
	"defect_min_depth":          floatField(func(d *Detection) *float64 { return &d.DefectMinDepth }),
	"defect_max_angle_deg":      floatField(func(d *Detection) *float64 { return &d.DefectMaxAngleDeg }),
	"history_window_size":       intField(func(d *Detection) *int { return &d.HistoryWindowSize }),
	"calibration_frame_quota":   intField(func(d *Detection) *int { return &d.CalibrationFrameQuota }),
	"morph_kernel_size":         intField(func(d *Detection) *int { return &d.MorphKernelSize }),
	"background_blur_size":      intField(func(d *Detection) *int { return &d.BackgroundBlurSize }),
}

// OptionKeys returns every known option key in sorted order.
func OptionKeys() []string {
	keys := make([]string, 0, len(optionFields))
	for k := range optionFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Options lists the current value of every named option, sorted by key.
func (d Detection) Options() []Option {
	keys := OptionKeys()
	opts := make([]Option, 0, len(keys))
	for _, k := range keys {
		f := optionFields[k]
		opts = append(opts, Option{Key: k, Value: f.get(&d), Integer: f.integer})
	}
	return opts
}

// ParseOption validates a raw option value for key without applying it.
func ParseOption(key, raw string) (float64, error) {
	f, ok := optionFields[key]
	if !ok {
		return 0, fmt.Errorf("%w: unknown option %q", ErrInvalid, key)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: option %s=%q is not a number", ErrInvalid, key, raw)
	}
	if f.integer && v != math.Trunc(v) {
		return 0, fmt.Errorf("%w: option %s=%q must be a whole number", ErrInvalid, key, raw)
	}
	return v, nil
}

// ApplyOverrides sets named options from stored key/value pairs and
// revalidates the result. The receiver is left untouched on error.
func (c *Config) ApplyOverrides(overrides map[string]string) error {
	d := c.Detection
	for key, raw := range overrides {
		v, err := ParseOption(key, raw)
		if err != nil {
			return err
		}
		optionFields[key].set(&d, v)
	}
	if err := d.Validate(); err != nil {
		return err
	}
	c.Detection = d
	return nil
}

// FormatValue renders an option value the way it is stored.
func (o Option) FormatValue() string {
	if o.Integer {
		return strconv.Itoa(int(o.Value))
	}
	return strconv.FormatFloat(o.Value, 'f', -1, 64)
}
