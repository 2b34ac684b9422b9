package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"budget/internal/core"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Data([]int{1, 2}).
		Write(w)

	if w.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if got, want := w.Body.String(), `{"success":true,"data":[1,2]}`+"\n"; got != want {
		t.Errorf("Body = %q, want %q", got, want)
	}
}

func TestJSONResponseBuilder_OmitsEmptyFields(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Message("Expense deleted successfully").Write(w)

	var raw map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"data", "error", "year", "timestamp"} {
		if _, ok := raw[key]; ok {
			t.Errorf("unexpected key %q in %v", key, raw)
		}
	}
}

func TestJSONResponseBuilder_EmptySliceIsKept(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Data([]core.Expense{}).Write(w)

	if got, want := w.Body.String(), `{"success":true,"data":[]}`+"\n"; got != want {
		t.Errorf("Body = %q, want %q", got, want)
	}
}

func TestJSONResponseBuilder_StatusSetsSuccess(t *testing.T) {
	tests := []struct {
		code        int
		wantSuccess bool
	}{
		{http.StatusOK, true},
		{http.StatusCreated, true},
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		b := NewJSONResponse().Status(tt.code)
		if got := b.Envelope().Success; got != tt.wantSuccess {
			t.Errorf("Status(%d) success = %v, want %v", tt.code, got, tt.wantSuccess)
		}
	}
}

func TestJSONResponseBuilder_YearAndTimestamp(t *testing.T) {
	w := httptest.NewRecorder()
	ts := time.Date(2024, 5, 1, 10, 30, 0, 0, time.FixedZone("CEST", 2*3600))

	NewJSONResponse().Year(2024).Timestamp(ts).Write(w)

	var env Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Year != 2024 {
		t.Errorf("Year = %d", env.Year)
	}
	if env.Timestamp != "2024-05-01T08:30:00Z" {
		t.Errorf("Timestamp = %q", env.Timestamp)
	}
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name     string
		builder  *JSONResponseBuilder
		wantCode int
		wantMsg  string
	}{
		{"BadRequest", BadRequestError("bad"), http.StatusBadRequest, "bad"},
		{"NotFound", NotFoundError("Expense not found"), http.StatusNotFound, "Expense not found"},
		{"Internal", InternalServerError("oops"), http.StatusInternalServerError, "oops"},
		{"TooMany", TooManyRequestsError(time.Minute), http.StatusTooManyRequests, "Rate limit exceeded. Please try again later."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			if w.Code != tt.wantCode {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantCode)
			}
			var env Envelope
			if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if env.Success {
				t.Error("error response marked successful")
			}
			if env.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", env.Message, tt.wantMsg)
			}
		})
	}
}

func TestTooManyRequestsRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	TooManyRequestsError(90 * time.Second).Write(w)
	if got := w.Header().Get("Retry-After"); got != "90" {
		t.Errorf("Retry-After = %q, want 90", got)
	}

	w = httptest.NewRecorder()
	TooManyRequestsError(0).Write(w)
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want 1", got)
	}
}

func TestDetailIsWritten(t *testing.T) {
	w := httptest.NewRecorder()
	InternalServerError("Failed to fetch expenses").Detail("database is locked").Write(w)

	var env Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error != "database is locked" {
		t.Errorf("Error = %q", env.Error)
	}
}
