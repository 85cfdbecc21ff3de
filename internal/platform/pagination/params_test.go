package pagination

import (
	"errors"
	"net/url"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	params, err := Parse(url.Values{}, Options{})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageSize != DefaultPageSize || !params.Cursor.IsZero() {
		t.Fatalf("unexpected defaults %+v", params)
	}
}

func TestParsePageSizeClamped(t *testing.T) {
	values := url.Values{"pageSize": {"400"}}
	params, err := Parse(values, Options{DefaultPageSize: 20, MaxPageSize: 40})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageSize != 40 {
		t.Fatalf("expected clamp to 40, got %d", params.PageSize)
	}
}

func TestParseRejectsInvalidInput(t *testing.T) {
	if _, err := Parse(url.Values{"pageSize": {"-1"}}, Options{}); !errors.Is(err, ErrInvalidPageSize) {
		t.Fatalf("expected ErrInvalidPageSize, got %v", err)
	}
	if _, err := Parse(url.Values{"pageToken": {"!!"}}, Options{}); !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	cursor := Cursor{CreatedAt: time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC), ID: "ord_01"}
	token := EncodeToken(cursor)
	params, err := Parse(url.Values{"pageToken": {token}}, Options{})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if !params.Cursor.CreatedAt.Equal(cursor.CreatedAt) || params.Cursor.ID != cursor.ID {
		t.Fatalf("unexpected cursor %+v", params.Cursor)
	}
	if EncodeToken(Cursor{}) != "" {
		t.Fatalf("expected empty token for zero cursor")
	}
}
