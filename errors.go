package lilac

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/lilac/content"
	"github.com/eringen/lilac/storage"
)

// errorResponse is the JSON body of every failed API request.
type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// statusError carries a client-facing message with its status code.
func statusError(code int, msg string) error {
	return echo.NewHTTPError(code, msg)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, body := a.classify(err)
	if code >= 500 {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, body)
}

// classify maps an error to its HTTP status and response body.
func (a *App) classify(err error) (int, errorResponse) {
	var ve *content.ValidationError
	var he *echo.HTTPError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, errorResponse{Error: "Validation failed", Details: ve.Problems}
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: "Not found"}
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict, errorResponse{Error: "A post with this title already exists"}
	case errors.Is(err, storage.ErrInvalidName):
		return http.StatusBadRequest, errorResponse{Error: "Invalid name"}
	case errors.Is(err, storage.ErrUnavailable):
		return http.StatusServiceUnavailable, errorResponse{Error: "Storage unavailable"}
	case errors.As(err, &he):
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		return he.Code, errorResponse{Error: msg}
	}
	return http.StatusInternalServerError, errorResponse{Error: "Internal server error"}
}
