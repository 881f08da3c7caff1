package commands

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strconv"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const formatSVG = "svg"

var (
	// ErrUnrecognizedImage is returned when the data is neither a supported raster format nor an SVG document
	ErrUnrecognizedImage = errors.New("data is not a recognised image format")
	// ErrImageTooLarge is returned when the image dimensions exceed the configured pixel limit
	ErrImageTooLarge = errors.New("image dimensions exceed limit")
)

// DecodeOptions limits and fallbacks applied while decoding fetched image data
type DecodeOptions struct {
	// MaxPixels caps width*height; zero disables the check
	MaxPixels int
	// SVGFallbackWidth and SVGFallbackHeight are used for SVG documents without explicit size
	SVGFallbackWidth  int
	SVGFallbackHeight int
}

// DecodeImage decodes raw image bytes and returns the image together with its format name.
// Raster formats are checked against MaxPixels before the pixel data is decoded.
func DecodeImage(data []byte, opts DecodeOptions) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty image data: %w", ErrUnrecognizedImage)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			if root, ok := svgRootElement(data); ok {
				return decodeSVG(data, root, opts)
			}
			return nil, "", ErrUnrecognizedImage
		}
		return nil, "", fmt.Errorf("failed to read image header: %w", err)
	}

	if err := checkDimensions(cfg.Width, cfg.Height, opts.MaxPixels); err != nil {
		return nil, format, err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, format, fmt.Errorf("failed to decode %s image: %w", format, err)
	}

	slog.Debug("decoded raster image",
		"format", format,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy())

	return img, format, nil
}

func checkDimensions(width, height, maxPixels int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("image has no width: %w", ErrUnrecognizedImage)
	}
	if maxPixels > 0 && width*height > maxPixels {
		return fmt.Errorf("%dx%d is more than %d pixels: %w", width, height, maxPixels, ErrImageTooLarge)
	}
	return nil
}

func decodeSVG(data []byte, root xml.StartElement, opts DecodeOptions) (image.Image, string, error) {
	w, h, ok := svgExplicitSize(root)
	if !ok {
		w, h = opts.SVGFallbackWidth, opts.SVGFallbackHeight
		slog.Debug("SVG lacks explicit size; using fallback", "width", w, "height", h)
	}
	if err := checkDimensions(w, h, opts.MaxPixels); err != nil {
		return nil, formatSVG, err
	}

	img, err := rasterizeSVG(data, w, h)
	if err != nil {
		return nil, formatSVG, err
	}
	return img, formatSVG, nil
}

// svgRootElement reports whether the first element of the document is <svg>.
// HTML pages that merely embed an inline SVG are rejected.
func svgRootElement(data []byte) (xml.StartElement, bool) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = false
	for {
		token, err := decoder.Token()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("data is not an XML document", "error", err)
			}
			return xml.StartElement{}, false
		}
		if start, ok := token.(xml.StartElement); ok {
			return start, strings.EqualFold(start.Name.Local, "svg")
		}
	}
}

// svgExplicitSize reads absolute width and height attributes such as "640" or "640px".
// Relative units like "100%" do not count as an explicit size.
func svgExplicitSize(root xml.StartElement) (int, int, bool) {
	var w, h int
	for _, attr := range root.Attr {
		switch strings.ToLower(attr.Name.Local) {
		case "width":
			w = parseSVGLength(attr.Value)
		case "height":
			h = parseSVGLength(attr.Value)
		}
	}
	return w, h, w > 0 && h > 0
}

func parseSVGLength(value string) int {
	value = strings.TrimSuffix(strings.TrimSpace(strings.ToLower(value)), "px")
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f <= 0 {
		return 0
	}
	return int(f + 0.5)
}

// rasterizeSVG renders an SVG document onto a transparent canvas of the given size
func rasterizeSVG(svgData []byte, targetW, targetH int) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgData), oksvg.WarnErrorMode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}

	if icon.ViewBox.W <= 0 || icon.ViewBox.H <= 0 {
		icon.ViewBox.W, icon.ViewBox.H = float64(targetW), float64(targetH)
	}
	icon.SetTarget(0, 0, float64(targetW), float64(targetH))

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	scanner := rasterx.NewScannerGV(targetW, targetH, dst, dst.Bounds())
	dasher := rasterx.NewDasher(targetW, targetH, scanner)
	icon.Draw(dasher, 1.0)

	slog.Debug("rasterized SVG image", "width", targetW, "height", targetH)
	return dst, nil
}
