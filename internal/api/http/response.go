package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	gerr "github.com/jekabolt/grbpwr-attribution/internal/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type ErrResponse struct {
	Err            error `json:"-"` // low-level runtime error
	HTTPStatusCode int   `json:"-"` // http response status code

	StatusText string `json:"status"`          // user-level status message
	Code       string `json:"code,omitempty"`  // error kind
	ErrorText  string `json:"error,omitempty"` // application-level error message, for debugging
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

// ErrFromError maps an engine error to its http status through its gRPC code.
func ErrFromError(err error) render.Renderer {
	code := status.Code(err)
	httpStatus := runtime.HTTPStatusFromCode(code)
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: httpStatus,
		StatusText:     http.StatusText(httpStatus),
		Code:           errorKind(err, code),
		ErrorText:      err.Error(),
	}
}

func errorKind(err error, code codes.Code) string {
	switch {
	case errors.Is(err, gerr.InvalidFilter):
		return "invalid_filter"
	case errors.Is(err, gerr.ShopNotFound):
		return "shop_not_found"
	case errors.Is(err, gerr.UpstreamQueryFailed):
		return "upstream_query_failed"
	case errors.Is(err, gerr.MetadataFetchFailed):
		return "metadata_fetch_failed"
	default:
		return code.String()
	}
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	if err := render.Render(w, r, ErrFromError(err)); err != nil {
		slog.Default().ErrorContext(r.Context(), "can't render error response", slog.String("err", err.Error()))
	}
}
