package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/debugmarathon/apiserver/internal/auth"
	"github.com/debugmarathon/apiserver/internal/logging"
	"github.com/debugmarathon/apiserver/types"
)

const maxBodyBytes = 10 << 20

type contextKey string

const contextIdentityKey contextKey = "identity"

// Options carries presentation settings shared by all handlers.
type Options struct {
	// Debug exposes internal error details in 500 responses.
	Debug bool

	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

// IdentityFromContext returns the caller stored by RequireSession.
func IdentityFromContext(ctx context.Context) (types.Identity, bool) {
	identity, ok := ctx.Value(contextIdentityKey).(types.Identity)
	return identity, ok
}

func withIdentity(ctx context.Context, identity types.Identity) context.Context {
	return context.WithValue(ctx, contextIdentityKey, identity)
}

// decodeJSON reads a single JSON object from the request body. Unknown keys
// are ignored. An empty body leaves dst untouched so required-field checks
// report the real problem.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.As(err, &tooLarge):
			return auth.ErrValidation("Request body too large")
		default:
			return auth.ErrValidation("Invalid request body")
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// writeError renders err in the failure envelope. Unexpected failures are
// logged and their details withheld unless opts.Debug is set.
func writeError(w http.ResponseWriter, r *http.Request, opts Options, err error) {
	status := auth.StatusCode(err)
	resp := ErrorResponse{Error: auth.PublicMessage(err, opts.Debug)}

	if status == http.StatusInternalServerError {
		logging.LogError(r.Context(), opts.logger(), "request failed", err)
	}
	if retryAfter, ok := auth.RetryAfter(err); ok {
		resp.RetryAfter = retryAfter
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}

	writeJSON(w, status, resp)
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

// MessageResponse is a success envelope carrying only a message.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
