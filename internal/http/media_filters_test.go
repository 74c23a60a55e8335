package httpserver

import (
	"encoding/base64"
	"net/url"
	"testing"

	"github.com/mosaicmedia/catalog/internal/config"
)

func TestBuildMediaFilters(t *testing.T) {
	cases := []struct {
		name    string
		query   string
		wantErr bool
	}{
		{name: "empty", query: ""},
		{name: "query term", query: "q=cowboy"},
		{name: "valid kind", query: "kind=book"},
		{name: "invalid kind", query: "kind=film", wantErr: true},
		{name: "valid year", query: "year=1998"},
		{name: "invalid year", query: "year=ninetyeight", wantErr: true},
		{name: "genre", query: "genre=drama"},
		{name: "valid limit", query: "limit=5"},
		{name: "invalid limit", query: "limit=lots", wantErr: true},
		{name: "invalid cursor", query: "cursor=!!!not-base64!!!", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			values, err := url.ParseQuery(tc.query)
			if err != nil {
				t.Fatalf("parse query: %v", err)
			}
			_, err = buildMediaFilters(values)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error for %q", tc.query)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error for %q: %v", tc.query, err)
			}
		})
	}
}

func TestBuildMediaFilters_Values(t *testing.T) {
	values := url.Values{}
	values.Set("q", "  cowboy  ")
	values.Set("kind", "show")
	values.Set("year", "1998")
	values.Set("genre", "Western")
	values.Set("limit", "7")

	filters, err := buildMediaFilters(values)
	if err != nil {
		t.Fatalf("buildMediaFilters: %v", err)
	}
	if filters.Query == nil || *filters.Query != "cowboy" {
		t.Fatalf("query = %v, want trimmed cowboy", filters.Query)
	}
	if filters.Kind == nil || *filters.Kind != "show" {
		t.Fatalf("kind = %v", filters.Kind)
	}
	if filters.Year == nil || *filters.Year != 1998 {
		t.Fatalf("year = %v", filters.Year)
	}
	if filters.Genre == nil || *filters.Genre != "Western" {
		t.Fatalf("genre = %v", filters.Genre)
	}
	if filters.Limit != 7 {
		t.Fatalf("limit = %d", filters.Limit)
	}
}

func TestBuildMediaFilters_ForgedCursorID(t *testing.T) {
	forged := base64.StdEncoding.EncodeToString([]byte(`{"createdAt":"2024-01-01T00:00:00Z","id":"1 OR 1=1"}`))
	values := url.Values{}
	values.Set("cursor", forged)

	if _, err := buildMediaFilters(values); err == nil {
		t.Fatalf("expected error for cursor with non-uuid id")
	}
}

func TestVerifyBearer(t *testing.T) {
	s := &Server{cfg: config.Config{AuthToken: "sesame"}}

	cases := []struct {
		header string
		want   bool
	}{
		{"", false},
		{"sesame", false},
		{"Bearer sesame", true},
		{"Bearer  sesame", true},
		{"Bearer wrong", false},
		{"Basic sesame", false},
		{"bearer sesame", false},
	}
	for _, tc := range cases {
		if got := s.verifyBearer(tc.header); got != tc.want {
			t.Errorf("verifyBearer(%q) = %v, want %v", tc.header, got, tc.want)
		}
	}
}
