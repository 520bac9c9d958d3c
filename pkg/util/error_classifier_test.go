package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeDomainErr struct{ retry bool }

func (e fakeDomainErr) Error() string   { return "domain" }
func (e fakeDomainErr) Retryable() bool { return e.retry }

func TestIsRetryableError(t *testing.T) {
	syntaxErr := json.Unmarshal([]byte("{"), &struct{}{})

	cases := []struct {
		name      string
		err       error
		retryable bool
		errType   string
	}{
		{"nil", nil, false, ""},
		{"domain retryable", fmt.Errorf("wrap: %w", fakeDomainErr{retry: true}), true, "dependency_failure"},
		{"domain business", fakeDomainErr{retry: false}, false, "business_rule"},
		{"json", syntaxErr, false, "json_decode_error"},
		{"no rows", fmt.Errorf("get: %w", pgx.ErrNoRows), false, "not_found"},
		{"unique", &pgconn.PgError{Code: "23505"}, false, "duplicate_key"},
		{"serialization", &pgconn.PgError{Code: "40001"}, true, "db_transaction_conflict"},
		{"deadline", context.DeadlineExceeded, true, "timeout"},
		{"canceled", context.Canceled, false, "context_canceled"},
		{"refused", errors.New("dial tcp: connection refused"), true, "connection_error"},
		{"unknown", errors.New("boom"), false, "unknown_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			retryable, errType := IsRetryableError(tc.err)
			if retryable != tc.retryable || errType != tc.errType {
				t.Fatalf("IsRetryableError = (%v, %q), want (%v, %q)", retryable, errType, tc.retryable, tc.errType)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	if ShouldRetry(1, 3, false) {
		t.Fatalf("non-retryable must not retry")
	}
	if !ShouldRetry(3, 3, true) {
		t.Fatalf("attempt at limit should retry")
	}
	if ShouldRetry(4, 3, true) {
		t.Fatalf("attempt over limit should not retry")
	}
}

func TestCounterKeys(t *testing.T) {
	if got := attemptKey("q", "abc"); got != "attempts:q:abc" {
		t.Fatalf("attemptKey = %q", got)
	}
	if got := dedupKey("notify", "7"); got != "dedup:notify:7" {
		t.Fatalf("dedupKey = %q", got)
	}
}
