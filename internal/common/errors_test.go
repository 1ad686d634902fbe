package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return env.Error
}

func TestWriteErrorRendersAppError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, NewAppError("OUT_OF_STOCK", "product is out of stock", http.StatusConflict, errors.New("stock 0")))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Code != "OUT_OF_STOCK" {
		t.Fatalf("unexpected code %q", body.Code)
	}
	if body.Message != "product is out of stock" {
		t.Fatalf("unexpected message %q", body.Message)
	}
}

func TestWriteErrorUnwrapsWrappedAppError(t *testing.T) {
	wrapped := fmt.Errorf("add item: %w", NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, nil))

	rec := httptest.NewRecorder()
	WriteError(rec, wrapped)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 through the wrap, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Code != "NOT_FOUND" {
		t.Fatalf("unexpected code %q", body.Code)
	}
	if !IsAppError(wrapped) {
		t.Fatal("IsAppError must see through fmt.Errorf wrapping")
	}
}

func TestWriteErrorOpaqueFallsBackToInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("boom"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Code != "INTERNAL" {
		t.Fatalf("unexpected code %q", body.Code)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("upstream said no")
	app := NewAppError("SALE_REJECTED", "sale rejected", http.StatusUnprocessableEntity, cause)

	if !errors.Is(app, cause) {
		t.Fatal("errors.Is must reach the wrapped cause")
	}
	if app.Error() != cause.Error() {
		t.Fatalf("Error() should defer to the cause, got %q", app.Error())
	}
}
