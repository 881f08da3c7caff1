package commands

import (
	"fmt"
	"image"
	"log/slog"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/jo-hoe/pngcompress/internal/backend/commandstructure"
)

// DefaultMaxWidth is the width above which images are scaled down
const DefaultMaxWidth = 1024

var resampleFilters = map[string]imaging.ResampleFilter{
	"lanczos":    imaging.Lanczos,
	"catmullrom": imaging.CatmullRom,
	"linear":     imaging.Linear,
	"box":        imaging.Box,
	"nearest":    imaging.NearestNeighbor,
}

// WidthLimitParams represents typed parameters for the width limit command
type WidthLimitParams struct {
	MaxWidth int
	Filter   string
}

// NewWidthLimitParamsFromMap creates WidthLimitParams from a generic map
func NewWidthLimitParamsFromMap(params map[string]any) (*WidthLimitParams, error) {
	maxWidth := commandstructure.GetIntParam(params, "maxWidth", DefaultMaxWidth)
	if maxWidth <= 0 {
		return nil, fmt.Errorf("maxWidth must be positive, got %d", maxWidth)
	}

	filter := strings.ToLower(commandstructure.GetStringParam(params, "filter", "lanczos"))
	if _, ok := resampleFilters[filter]; !ok {
		return nil, fmt.Errorf("unknown resample filter: %s", filter)
	}

	return &WidthLimitParams{
		MaxWidth: maxWidth,
		Filter:   filter,
	}, nil
}

// WidthLimitCommand scales images wider than MaxWidth down to exactly MaxWidth,
// keeping the aspect ratio. Narrower images pass through untouched.
type WidthLimitCommand struct {
	name   string
	params *WidthLimitParams
}

// NewWidthLimitCommand creates a new width limit command from configuration parameters
func NewWidthLimitCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewWidthLimitParamsFromMap(params)
	if err != nil {
		return nil, err
	}

	return &WidthLimitCommand{
		name:   "WidthLimitCommand",
		params: typedParams,
	}, nil
}

// Name returns the command name
func (c *WidthLimitCommand) Name() string {
	return c.name
}

// GetParams returns the typed parameters
func (c *WidthLimitCommand) GetParams() *WidthLimitParams {
	return c.params
}

// TargetWidth returns maxWidth when width exceeds it and width otherwise.
// An image exactly maxWidth wide is not resized.
func TargetWidth(width, maxWidth int) int {
	if width > maxWidth {
		return maxWidth
	}
	return width
}

// Execute resizes the image when it is wider than the configured maximum
func (c *WidthLimitCommand) Execute(img image.Image) (image.Image, error) {
	bounds := img.Bounds()
	width := bounds.Dx()

	target := TargetWidth(width, c.params.MaxWidth)
	if target == width {
		slog.Debug("WidthLimitCommand: image within limit; skipping resize",
			"width", width,
			"max_width", c.params.MaxWidth)
		return img, nil
	}

	// a zero height makes imaging keep the aspect ratio, rounding to the nearest pixel
	resized := imaging.Resize(img, target, 0, resampleFilters[c.params.Filter])

	slog.Debug("WidthLimitCommand: resized image",
		"original_width", width,
		"original_height", bounds.Dy(),
		"width", resized.Bounds().Dx(),
		"height", resized.Bounds().Dy(),
		"filter", c.params.Filter)

	return resized, nil
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("WidthLimitCommand", NewWidthLimitCommand); err != nil {
		panic(fmt.Sprintf("failed to register WidthLimitCommand: %v", err))
	}
}
