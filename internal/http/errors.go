package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/kellywsq03/RAGify/internal/config"
	"github.com/kellywsq03/RAGify/internal/llm"
	"github.com/kellywsq03/RAGify/internal/loader"
	"github.com/kellywsq03/RAGify/internal/storage"
	"github.com/kellywsq03/RAGify/internal/vectorstore"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// StatusFor maps an error to its HTTP status code.
func StatusFor(err error) int {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, loader.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, config.ErrConfigurationMissing):
		return http.StatusServiceUnavailable
	case errors.Is(err, storage.ErrUnsupportedContentType),
		errors.Is(err, storage.ErrInvalidInput),
		errors.Is(err, vectorstore.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, vectorstore.ErrEmbedderMismatch):
		return http.StatusConflict
	case errors.Is(err, storage.ErrRemoteFetchFailed),
		errors.Is(err, storage.ErrUploadFailed),
		errors.Is(err, storage.ErrListFailed),
		errors.Is(err, vectorstore.ErrEmbeddingFailed),
		errors.Is(err, vectorstore.ErrConnectionFailed),
		errors.Is(err, llm.ErrGenerationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorHandler renders errors as ErrorResponse. Internal errors are
// logged and replaced with a generic message.
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := StatusFor(err)
		msg := err.Error()

		var he *echo.HTTPError
		if errors.As(err, &he) {
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(he.Code)
			}
		}

		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Int("status", status),
				zap.Error(err),
			)
		}
		if status == http.StatusInternalServerError {
			msg = "internal server error"
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, ErrorResponse{OK: false, Error: msg})
		}
		if werr != nil {
			logger.Warn("failed to write error response", zap.Error(werr))
		}
	}
}
