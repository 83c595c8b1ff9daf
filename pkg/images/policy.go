package images

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Policy holds the accept/reject thresholds for candidate listing images.
// Aspect bounds exclude banner strips; the bytes-per-pixel floor rejects
// over-compressed photos; the logo heuristic catches large flat graphics
// that compress to almost nothing.
type Policy struct {
	MinWidth         int     `yaml:"min_width" json:"min_width"`
	MinHeight        int     `yaml:"min_height" json:"min_height"`
	MinAspect        float64 `yaml:"min_aspect" json:"min_aspect"`
	MaxAspect        float64 `yaml:"max_aspect" json:"max_aspect"`
	MinBytesPerPixel float64 `yaml:"min_bytes_per_pixel" json:"min_bytes_per_pixel"`
	MaxBytes         int     `yaml:"max_bytes" json:"max_bytes"`
	LogoCanvasPixels int     `yaml:"logo_canvas_pixels" json:"logo_canvas_pixels"`
	LogoMaxBytes     int     `yaml:"logo_max_bytes" json:"logo_max_bytes"`
}

func DefaultPolicy() Policy {
	return Policy{
		MinWidth:         600,
		MinHeight:        400,
		MinAspect:        0.4,
		MaxAspect:        3.0,
		MinBytesPerPixel: 0.05,
		MaxBytes:         10 * 1024 * 1024,
		LogoCanvasPixels: 1_000_000,
		LogoMaxBytes:     100 * 1024,
	}
}

// LoadPolicy reads thresholds from a YAML file, falling back to defaults when
// no path is configured.
func LoadPolicy(path string) (Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultPolicy(), err
	}

	policy := DefaultPolicy()
	if err := yaml.Unmarshal(content, &policy); err != nil {
		return Policy{}, err
	}
	return policy, nil
}

// Check applies every threshold and names the first one the image fails.
func (p Policy) Check(width, height, sizeBytes int) (ok bool, reason string) {
	if width < p.MinWidth {
		return false, fmt.Sprintf("width %d below minimum %d", width, p.MinWidth)
	}
	if height < p.MinHeight {
		return false, fmt.Sprintf("height %d below minimum %d", height, p.MinHeight)
	}

	aspect := float64(width) / float64(height)
	if aspect < p.MinAspect || aspect > p.MaxAspect {
		return false, fmt.Sprintf("aspect ratio %.2f outside [%.2f, %.2f]", aspect, p.MinAspect, p.MaxAspect)
	}

	pixels := width * height
	bpp := float64(sizeBytes) / float64(pixels)
	if bpp < p.MinBytesPerPixel {
		return false, fmt.Sprintf("bytes-per-pixel %.4f below floor %.4f", bpp, p.MinBytesPerPixel)
	}

	if pixels > p.LogoCanvasPixels && sizeBytes < p.LogoMaxBytes {
		return false, fmt.Sprintf("large canvas (%d px) with tiny file (%d bytes), likely a graphic", pixels, sizeBytes)
	}

	return true, ""
}
