package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseLimit_Default(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/occurrences", nil)

	limit, err := parseLimit(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, limit)
	}
}

func TestParseLimit_CustomValue(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/occurrences?limit=7", nil)

	limit, err := parseLimit(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if limit != 7 {
		t.Errorf("expected limit 7, got %d", limit)
	}
}

func TestParseLimit_LimitExceedsMax(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/occurrences?limit=501", nil)

	_, err := parseLimit(req)
	if err == nil {
		t.Fatal("expected error for limit exceeding max, got nil")
	}

	expected := "limit exceeds maximum of 500"
	if err.Error() != expected {
		t.Errorf("expected error %q, got %q", expected, err.Error())
	}
}

func TestParseLimit_LimitAtMax(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/occurrences?limit=500", nil)

	limit, err := parseLimit(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if limit != MaxLimit {
		t.Errorf("expected limit %d, got %d", MaxLimit, limit)
	}
}

func TestParseLimit_Invalid(t *testing.T) {
	for _, q := range []string{"-1", "abc"} {
		req := httptest.NewRequest(http.MethodGet, "/occurrences?limit="+q, nil)
		if _, err := parseLimit(req); err == nil {
			t.Errorf("expected error for limit=%s, got nil", q)
		}
	}
}

func TestParseLimit_ZeroLimit(t *testing.T) {
	// limit=0 should be treated as "use default"
	req := httptest.NewRequest(http.MethodGet, "/occurrences?limit=0", nil)

	limit, err := parseLimit(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if limit != DefaultLimit {
		t.Errorf("expected default limit %d for limit=0, got %d", DefaultLimit, limit)
	}
}
