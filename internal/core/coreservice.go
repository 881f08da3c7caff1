package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jo-hoe/pngcompress/internal/backend/commands"
	"github.com/jo-hoe/pngcompress/internal/backend/commandstructure"
	"github.com/jo-hoe/pngcompress/internal/fetch"
)

// ImageFetcher retrieves the raw bytes behind an image URL
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Result, error)
}

type CoreService struct {
	config   *ServiceConfig
	fetcher  ImageFetcher
	pipeline *commandstructure.CommandInvoker
}

// NewCoreService builds the service with an HTTP fetcher configured from config
func NewCoreService(config *ServiceConfig) (*CoreService, error) {
	fetcher := fetch.NewFetcher(&http.Client{}, config.FetchTimeout, config.MaxImageBytes)
	return NewCoreServiceWithFetcher(config, fetcher)
}

// NewCoreServiceWithFetcher builds the service around the given fetcher
func NewCoreServiceWithFetcher(config *ServiceConfig, fetcher ImageFetcher) (*CoreService, error) {
	pipeline, err := commandstructure.NewCommandInvokerFromConfig(commandstructure.DefaultRegistry, config.PipelineCommands())
	if err != nil {
		return nil, fmt.Errorf("failed to build image pipeline: %w", err)
	}
	slog.Info("image pipeline initialized",
		"commands", pipeline.Names(),
		"compression_level", config.CompressionLevel)

	return &CoreService{
		config:   config,
		fetcher:  fetcher,
		pipeline: pipeline,
	}, nil
}

// Compress fetches the image at imageURL, limits its width, reduces its palette
// and returns it encoded as PNG. Every failure is returned as *Error.
func (service *CoreService) Compress(ctx context.Context, imageURL string) ([]byte, error) {
	start := time.Now()

	if err := validateImageURL(imageURL); err != nil {
		return nil, err
	}

	fetched, err := service.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		return nil, classifyFetchError(err)
	}

	img, format, err := commands.DecodeImage(fetched.Data, commands.DecodeOptions{
		MaxPixels:         service.config.MaxImagePixels,
		SVGFallbackWidth:  service.config.SVGFallbackWidth,
		SVGFallbackHeight: service.config.SVGFallbackHeight,
	})
	if err != nil {
		if errors.Is(err, commands.ErrImageTooLarge) {
			return nil, newError(InvalidInput, "image dimensions exceed limit", err)
		}
		slog.Debug("fetched data is not a decodable image",
			"url", imageURL, "content_type", fetched.ContentType, "error", err)
		return nil, newError(InvalidInput, "invalid image", err)
	}

	processed, err := service.pipeline.Execute(img)
	if err != nil {
		return nil, newError(ProcessingFailure, "failed to process the image", err)
	}

	out, err := commands.EncodePNG(processed, service.config.CompressionLevel)
	if err != nil {
		return nil, newError(ProcessingFailure, "failed to encode the image", err)
	}

	slog.Info("compressed image",
		"url", imageURL,
		"format", format,
		"content_type", fetched.ContentType,
		"original_width", img.Bounds().Dx(),
		"original_height", img.Bounds().Dy(),
		"width", processed.Bounds().Dx(),
		"height", processed.Bounds().Dy(),
		"input_size", humanize.Bytes(uint64(len(fetched.Data))),
		"output_size", humanize.Bytes(uint64(len(out))),
		"duration_ms", time.Since(start).Milliseconds())

	return out, nil
}

func validateImageURL(imageURL string) error {
	if imageURL == "" {
		return newError(InvalidInput, "img is required", nil)
	}
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return newError(InvalidInput, "invalid URL provided", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return newError(InvalidInput, "URL scheme must be http or https", nil)
	}
	if parsed.Host == "" {
		return newError(InvalidInput, "URL has no host", nil)
	}
	return nil
}

// classifyFetchError separates resources that cannot be fetched (client error)
// from network and server faults on the way to them.
func classifyFetchError(err error) *Error {
	var statusErr *fetch.StatusError
	var dnsErr *net.DNSError

	switch {
	case errors.Is(err, fetch.ErrTooLarge):
		return newError(InvalidInput, "image exceeds size limit", err)
	case errors.As(err, &statusErr) && statusErr.StatusCode < 500:
		return newError(InvalidInput, fmt.Sprintf("image could not be fetched (status %d)", statusErr.StatusCode), err)
	case errors.As(err, &statusErr):
		return newError(UpstreamFailure, fmt.Sprintf("image host responded with status %d", statusErr.StatusCode), err)
	case errors.As(err, &dnsErr) && dnsErr.IsNotFound:
		return newError(InvalidInput, "image host could not be resolved", err)
	case isUnreachable(err):
		return newError(InvalidInput, "image host is unreachable", err)
	case fetch.IsTimeout(err):
		e := newError(UpstreamFailure, "timed out fetching the image", err)
		e.Timeout = true
		return e
	default:
		return newError(UpstreamFailure, "failed to fetch the image", err)
	}
}

// isUnreachable reports connection attempts that were refused or had no route,
// as opposed to faults on an established connection.
func isUnreachable(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH)
}
