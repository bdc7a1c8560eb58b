// Package responses writes the JSON envelopes shared by every handler.
package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Success{Data: data})
}

// WriteError renders err as a Failure envelope. Untyped errors become
// INTERNAL_ERROR. Messages and details of internal and dependency failures
// never reach the client; they are logged instead.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	class := pkgerrors.ClassOf(typed.Code())

	problem := Problem{
		Code:      string(typed.Code()),
		Message:   class.Fallback,
		Retryable: class.Retryable,
	}
	if class.Expose {
		if msg := typed.Message(); msg != "" {
			problem.Message = msg
		}
		problem.Details = typed.Details()
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, pkgerrors.LogFields(err))
		if class.Status >= http.StatusInternalServerError {
			logg.Error(ctx, "request failed", err)
		} else {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "request rejected")
		}
	}
	writeJSON(w, class.Status, Failure{Error: problem})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; there is nothing useful left to do on failure.
	_ = json.NewEncoder(w).Encode(payload)
}
