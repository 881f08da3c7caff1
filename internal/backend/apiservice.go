package backend

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jo-hoe/pngcompress/internal/core"

	"github.com/labstack/echo/v4"
)

const (
	CompressRoute = "/img/png/compress"
	ProbeRoute    = "/probe"
	mimePNG       = "image/png"
)

// Compressor turns an image URL into compressed PNG bytes
type Compressor interface {
	Compress(ctx context.Context, imageURL string) ([]byte, error)
}

type APIService struct {
	coreService Compressor
}

// CompressRequest is the JSON body of the compress endpoint
type CompressRequest struct {
	Img string `json:"img" validate:"required,url"`
}

func NewAPIService(coreService Compressor) *APIService {
	return &APIService{
		coreService: coreService,
	}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	e.GET(ProbeRoute, func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.POST(CompressRoute, s.compressHandler)
}

func (s *APIService) compressHandler(ctx echo.Context) error {
	requestID := ctx.Response().Header().Get(echo.HeaderXRequestID)

	var req CompressRequest
	if err := ctx.Bind(&req); err != nil {
		slog.Error("compressHandler: failed to bind request body",
			"status", http.StatusBadRequest, "request_id", requestID, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := ctx.Validate(&req); err != nil {
		slog.Error("compressHandler: invalid request",
			"status", http.StatusBadRequest, "request_id", requestID, "error", err)
		return err
	}

	out, err := s.coreService.Compress(ctx.Request().Context(), req.Img)
	if err != nil {
		status := statusForError(err)
		slog.Error("compressHandler: failed to compress image",
			"status", status, "request_id", requestID, "url", req.Img, "error", err)
		return echo.NewHTTPError(status, clientMessage(err))
	}

	return ctx.Blob(http.StatusOK, mimePNG, out)
}

// statusForError maps the core error taxonomy onto HTTP status codes
func statusForError(err error) int {
	switch core.KindOf(err) {
	case core.InvalidInput:
		return http.StatusBadRequest
	case core.UpstreamFailure:
		var coreErr *core.Error
		if errors.As(err, &coreErr) && coreErr.Timeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func clientMessage(err error) string {
	var coreErr *core.Error
	if errors.As(err, &coreErr) && coreErr.Message != "" {
		return coreErr.Message
	}
	return "Failed to process the image."
}
