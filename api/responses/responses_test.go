package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
)

func decodeFailure(t *testing.T, w *httptest.ResponseRecorder) Problem {
	t.Helper()
	var body Failure
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode failure envelope: %v", err)
	}
	return body.Error
}

func TestWriteSuccessStatus(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"batch_number": "GB-00001"})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if body := strings.TrimSpace(w.Body.String()); body != `{"data":{"batch_number":"GB-00001"}}` {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestWriteErrorEnvelope(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		code      pkgerrors.Code
		message   string
		retryable bool
		details   bool
	}{
		{
			name:    "validation keeps message and details",
			err:     pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").WithDetails(map[string]string{"quantity": "min"}),
			status:  http.StatusBadRequest,
			code:    pkgerrors.CodeValidation,
			message: "quantity must be positive",
			details: true,
		},
		{
			name:      "conflict is retryable",
			err:       fmt.Errorf("join: %w", pkgerrors.New(pkgerrors.CodeConflict, "group order changed while joining")),
			status:    http.StatusConflict,
			code:      pkgerrors.CodeConflict,
			message:   "group order changed while joining",
			retryable: true,
		},
		{
			name:    "state conflict",
			err:     pkgerrors.New(pkgerrors.CodeStateConflict, "illegal transition"),
			status:  http.StatusUnprocessableEntity,
			code:    pkgerrors.CodeStateConflict,
			message: "illegal transition",
		},
		{
			name:      "dependency hides message and details",
			err:       pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("dial tcp"), "load group order").WithDetails("secret"),
			status:    http.StatusServiceUnavailable,
			code:      pkgerrors.CodeDependency,
			message:   "dependency unavailable",
			retryable: true,
		},
		{
			name:      "untyped becomes internal",
			err:       errors.New("boom"),
			status:    http.StatusInternalServerError,
			code:      pkgerrors.CodeInternal,
			message:   "internal server error",
			retryable: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(context.Background(), nil, w, tc.err)

			if w.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, w.Code)
			}
			problem := decodeFailure(t, w)
			if problem.Code != string(tc.code) || problem.Message != tc.message {
				t.Fatalf("unexpected problem %+v", problem)
			}
			if problem.Retryable != tc.retryable {
				t.Fatalf("expected retryable %v", tc.retryable)
			}
			if (problem.Details != nil) != tc.details {
				t.Fatalf("expected details present %v, got %v", tc.details, problem.Details)
			}
		})
	}
}

func TestWriteErrorLogsPostgresDiagnostics(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf, Format: logger.FormatJSON})
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "group_orders_batch_number_key", Message: "duplicate key"}

	WriteError(context.Background(), logg, httptest.NewRecorder(), pkgerrors.Wrap(pkgerrors.CodeDependency, pgErr, "insert group order"))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	want := map[string]string{
		"level":         "error",
		"pg_code":       "23505",
		"pg_constraint": "group_orders_batch_number_key",
		"error_code":    string(pkgerrors.CodeDependency),
	}
	for key, value := range want {
		if line[key] != value {
			t.Errorf("%s: expected %q, got %v", key, value, line[key])
		}
	}
}

func TestWriteErrorLogsRejectionsAtWarn(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf, Format: logger.FormatJSON})

	WriteError(context.Background(), logg, httptest.NewRecorder(), pkgerrors.New(pkgerrors.CodeNotFound, "group order not found"))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["level"] != "warn" || line["message"] != "request rejected" {
		t.Fatalf("unexpected log line %v", line)
	}
	if _, ok := line["pg_code"]; ok {
		t.Fatal("pg fields only appear for postgres errors")
	}
}
