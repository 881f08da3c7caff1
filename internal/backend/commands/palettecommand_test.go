package commands

import (
	"image"
	"image/color"
	"testing"

	"github.com/jo-hoe/pngcompress/internal/backend/commandstructure"
)

func TestNewPaletteCommand_Defaults(t *testing.T) {
	command, err := NewPaletteCommand(map[string]any{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	paletteCmd, ok := command.(*PaletteCommand)
	if !ok {
		t.Fatal("Expected command to be *PaletteCommand")
	}
	params := paletteCmd.GetParams()
	if params.Quality != 70 {
		t.Errorf("Expected default quality 70, got %d", params.Quality)
	}
	if params.Colors != 256 {
		t.Errorf("Expected default colors 256, got %d", params.Colors)
	}
	if !params.Dither {
		t.Error("Expected dithering to be enabled by default")
	}
	if params.maxIterations() != 8 {
		t.Errorf("Expected 8 iterations for quality 70, got %d", params.maxIterations())
	}
}

func TestNewPaletteCommand_InvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
	}{
		{"quality zero", map[string]any{"quality": 0}},
		{"quality over 100", map[string]any{"quality": 101}},
		{"one color", map[string]any{"colors": 1}},
		{"too many colors", map[string]any{"colors": 257}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPaletteCommand(tt.params); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestPaletteCommand_Execute_ReducesColors(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
		colors int
	}{
		{"default dithered", map[string]any{}, 256},
		{"small palette without dither", map[string]any{"colors": 16, "dither": false}, 16},
		{"low quality", map[string]any{"quality": 1, "colors": 8}, 8},
	}

	src := createGradientImage(64, 48)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			command, err := NewPaletteCommand(tt.params)
			if err != nil {
				t.Fatalf("Failed to create command: %v", err)
			}

			out, err := command.Execute(src)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}

			paletted, ok := out.(*image.Paletted)
			if !ok {
				t.Fatalf("Expected *image.Paletted, got %T", out)
			}
			if len(paletted.Palette) == 0 || len(paletted.Palette) > tt.colors {
				t.Errorf("Expected 1..%d palette entries, got %d", tt.colors, len(paletted.Palette))
			}
			if paletted.Bounds() != src.Bounds() {
				t.Errorf("Expected bounds %v, got %v", src.Bounds(), paletted.Bounds())
			}
		})
	}
}

func TestPaletteCommand_Execute_ExactPaletteForFewColors(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	colors := []color.NRGBA{
		{R: 255, A: 255},
		{G: 255, A: 255},
		{B: 255, A: 128},
	}
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			src.Set(x, y, colors[(x+y)%len(colors)])
		}
	}

	command, err := NewPaletteCommand(map[string]any{})
	if err != nil {
		t.Fatalf("Failed to create command: %v", err)
	}
	out, err := command.Execute(src)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	paletted := out.(*image.Paletted)
	if len(paletted.Palette) != 3 {
		t.Fatalf("Expected exact palette of 3 colors, got %d", len(paletted.Palette))
	}
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			want := color.RGBAModel.Convert(src.At(x, y))
			got := color.RGBAModel.Convert(paletted.At(x, y))
			if want != got {
				t.Fatalf("pixel (%d,%d): expected %v, got %v", x, y, want, got)
			}
		}
	}
}

func TestPaletteCommand_Execute_FullQualityKeepsImage(t *testing.T) {
	command, err := NewPaletteCommand(map[string]any{"quality": 100})
	if err != nil {
		t.Fatalf("Failed to create command: %v", err)
	}

	src := createGradientImage(16, 16)
	out, err := command.Execute(src)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if out != image.Image(src) {
		t.Error("Expected quality 100 to return the input image")
	}
}

func TestPaletteCommand_Execute_EmptyImage(t *testing.T) {
	command, err := NewPaletteCommand(map[string]any{})
	if err != nil {
		t.Fatalf("Failed to create command: %v", err)
	}
	if _, err := command.Execute(image.NewRGBA(image.Rectangle{})); err == nil {
		t.Error("Expected error for empty image")
	}
}

func TestPaletteCommand_RegisteredInDefaultRegistry(t *testing.T) {
	if !commandstructure.DefaultRegistry.IsRegistered("PaletteCommand") {
		t.Error("Expected PaletteCommand to be registered in DefaultRegistry")
	}
}

func TestColorVector_ToColorClampsToAlpha(t *testing.T) {
	c := colorVector{300, 120.4, -3, 100}.toColor()
	want := color.RGBA{R: 100, G: 100, B: 0, A: 100}
	if c != want {
		t.Errorf("Expected %v, got %v", want, c)
	}
}

func TestKMeans_IterateDoesNotIncreaseLoss(t *testing.T) {
	img := createGradientImage(32, 32)
	samples := make([]colorVector, 0, 32*32)
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			samples = append(samples, vectorFromRGBA(color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)))
		}
	}

	clusters := newKMeans(samples, 8)
	first := clusters.iterate()
	second := clusters.iterate()
	if second > first+1e-6 {
		t.Errorf("Expected loss not to increase, got %f then %f", first, second)
	}
	if len(clusters.palette()) > 8 {
		t.Errorf("Expected at most 8 palette entries, got %d", len(clusters.palette()))
	}
}
