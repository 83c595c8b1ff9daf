package faults

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestFromStatusCode(t *testing.T) {
	cases := []struct {
		status int
		want   Kind
	}{
		{401, AuthFatal},
		{403, AuthFatal},
		{402, QuotaExhausted},
		{429, TransientExternal},
		{500, TransientExternal},
		{503, TransientExternal},
		{400, ValidationFailure},
		{422, ValidationFailure},
	}

	for _, tc := range cases {
		got := FromStatusCode("research.search", tc.status)
		if got.Kind != tc.want {
			t.Errorf("status %d: got kind %s, want %s", tc.status, got.Kind, tc.want)
		}
	}
}

func TestKindOfUnwrapsChain(t *testing.T) {
	base := FromStatusCode("scraper.extract", 402)
	wrapped := fmt.Errorf("extract website: %w", base)

	if KindOf(wrapped) != QuotaExhausted {
		t.Fatalf("expected quota classification to survive wrapping, got %s", KindOf(wrapped))
	}
}

func TestKindOfUnclassifiedIsTransient(t *testing.T) {
	if KindOf(errors.New("connection reset")) != TransientExternal {
		t.Fatal("unclassified errors must fall into the retry path")
	}
}

func TestKindOfContextErrorsAreTransient(t *testing.T) {
	for _, err := range []error{
		context.DeadlineExceeded,
		fmt.Errorf("fetch page: %w", context.Canceled),
	} {
		kind := KindOf(err)
		if kind != TransientExternal {
			t.Fatalf("context error classified %s, want transient", kind)
		}
		if !Retryable(kind) {
			t.Fatal("context errors must stay on the retry path")
		}
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(TransientExternal) || !Retryable(ValidationFailure) {
		t.Fatal("transient and validation failures are retryable")
	}
	if Retryable(AuthFatal) || Retryable(QuotaExhausted) {
		t.Fatal("auth and quota failures must never auto-retry")
	}
}
