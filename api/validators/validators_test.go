package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/aktionfilm/aktionfilm-backend/pkg/errors"
)

type registerBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func TestDecodeJSONBodyValid(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.com","password":"longenough"}`))
	var body registerBody
	if err := DecodeJSONBody(req, &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.Email != "a@b.com" {
		t.Fatalf("unexpected email %q", body.Email)
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.com","password":"longenough","extra":true}`))
	var body registerBody
	err := DecodeJSONBody(req, &body)
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJSONBodyReportsFieldsByJSONTag(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"not-an-email","password":"short"}`))
	var body registerBody
	err := DecodeJSONBody(req, &body)
	if err == nil {
		t.Fatal("expected validation error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected details map, got %T", typed.Details)
	}
	if details["email"] != "must be a valid email" {
		t.Fatalf("unexpected email message %q", details["email"])
	}
	if details["password"] != "must be at least 8" {
		t.Fatalf("unexpected password message %q", details["password"])
	}
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=10", nil)
	got, err := ParseQueryInt(req, "limit", 25, 1, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 10 {
		t.Fatalf("expected 10 got %d", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	got, err = ParseQueryInt(req, "limit", 25, 1, 100)
	if err != nil || got != 25 {
		t.Fatalf("expected default 25, got %d err=%v", got, err)
	}

	req = httptest.NewRequest(http.MethodGet, "/?limit=abc", nil)
	if _, err := ParseQueryInt(req, "limit", 25, 1, 100); err == nil {
		t.Fatal("expected error for non-numeric value")
	}

	req = httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	if _, err := ParseQueryInt(req, "limit", 25, 1, 100); err == nil {
		t.Fatal("expected error for out-of-range value")
	}
}
