package commands

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/jo-hoe/pngcompress/internal/backend/commandstructure"
	"golang.org/x/image/draw"
)

const (
	// DefaultQuality mirrors the quality knob of palette-based PNG encoders
	DefaultQuality = 70
	// MaxPaletteColors is the largest palette a PNG can carry
	MaxPaletteColors = 256
)

// PaletteParams represents typed parameters for the palette command
type PaletteParams struct {
	Quality int
	Colors  int
	Dither  bool
}

// NewPaletteParamsFromMap creates PaletteParams from a generic map
func NewPaletteParamsFromMap(params map[string]any) (*PaletteParams, error) {
	quality := commandstructure.GetIntParam(params, "quality", DefaultQuality)
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("quality must be between 1 and 100, got %d", quality)
	}

	colors := commandstructure.GetIntParam(params, "colors", MaxPaletteColors)
	if colors < 2 || colors > MaxPaletteColors {
		return nil, fmt.Errorf("colors must be between 2 and %d, got %d", MaxPaletteColors, colors)
	}

	return &PaletteParams{
		Quality: quality,
		Colors:  colors,
		Dither:  commandstructure.GetBoolParam(params, "dither", true),
	}, nil
}

// maxIterations is the k-means iteration budget for the configured quality
func (p *PaletteParams) maxIterations() int {
	return 1 + p.Quality/10
}

// PaletteCommand reduces an image to an adaptive colour palette so the PNG
// encoder can write it as an indexed image. Quality 100 keeps full colour.
type PaletteCommand struct {
	name   string
	params *PaletteParams
}

// NewPaletteCommand creates a new palette command from configuration parameters
func NewPaletteCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewPaletteParamsFromMap(params)
	if err != nil {
		return nil, err
	}

	return &PaletteCommand{
		name:   "PaletteCommand",
		params: typedParams,
	}, nil
}

// Name returns the command name
func (c *PaletteCommand) Name() string {
	return c.name
}

// GetParams returns the typed parameters
func (c *PaletteCommand) GetParams() *PaletteParams {
	return c.params
}

// Execute quantizes the image to a palette of at most Colors entries
func (c *PaletteCommand) Execute(img image.Image) (image.Image, error) {
	if c.params.Quality >= 100 {
		slog.Debug("PaletteCommand: quality 100; keeping full colour")
		return img, nil
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("cannot build palette for empty image")
	}

	palette := buildPalette(img, c.params.Colors, c.params.maxIterations())

	out := image.NewPaletted(bounds, palette)
	if c.params.Dither {
		draw.FloydSteinberg.Draw(out, bounds, img, bounds.Min)
	} else {
		draw.Draw(out, bounds, img, bounds.Min, draw.Src)
	}

	slog.Debug("PaletteCommand: quantized image",
		"palette_size", len(palette),
		"quality", c.params.Quality,
		"max_iterations", c.params.maxIterations(),
		"dither", c.params.Dither)

	return out, nil
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("PaletteCommand", NewPaletteCommand); err != nil {
		panic(fmt.Sprintf("failed to register PaletteCommand: %v", err))
	}
}
