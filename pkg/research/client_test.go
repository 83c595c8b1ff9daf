package research

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/roland-id-au/vows-social-sub000/pkg/common/faults"
)

func TestSearchParsesCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/discovery/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"candidates":[
			{"name":"The Grand Pavilion","city":"Sydney","state":"NSW","category":"venue","website":"https://grandpavilion.example.com"},
			{"name":"Harbourlight Estate","city":"Sydney","state":"NSW","category":"venue"}
		],"usage":{"cost_usd":0.42}}`))
	}))
	defer srv.Close()

	client := NewClientWithHTTP(srv.URL, &http.Client{Timeout: 5 * time.Second})
	candidates, usage, err := client.Search(context.Background(), "wedding venues sydney", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if usage == nil || usage.CostUSD != 0.42 {
		t.Fatal("usage metrics not parsed")
	}
}

func TestSearchBoundsCandidateList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[{"name":"a"},{"name":"b"},{"name":"c"}]}`))
	}))
	defer srv.Close()

	client := NewClientWithHTTP(srv.URL, &http.Client{Timeout: 5 * time.Second})
	candidates, _, err := client.Search(context.Background(), "q", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected list bounded to 2, got %d", len(candidates))
	}
}

func TestStatusClassificationAtBoundary(t *testing.T) {
	cases := []struct {
		status int
		want   faults.Kind
	}{
		{http.StatusPaymentRequired, faults.QuotaExhausted},
		{http.StatusUnauthorized, faults.AuthFatal},
		{http.StatusServiceUnavailable, faults.TransientExternal},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		client := NewClientWithHTTP(srv.URL, &http.Client{Timeout: 5 * time.Second})
		_, _, err := client.Search(context.Background(), "q", 5)
		srv.Close()
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if faults.KindOf(err) != tc.want {
			t.Errorf("status %d: got kind %s, want %s", tc.status, faults.KindOf(err), tc.want)
		}
	}
}

func TestResearchRejectsMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"description":"no title"}}`))
	}))
	defer srv.Close()

	client := NewClientWithHTTP(srv.URL, &http.Client{Timeout: 5 * time.Second})
	_, _, err := client.Research(context.Background(), "The Grand Pavilion", "Sydney NSW", "venue")
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if faults.KindOf(err) != faults.ValidationFailure {
		t.Fatalf("got kind %s, want validation_failure", faults.KindOf(err))
	}
}
