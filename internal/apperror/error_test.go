package apperror_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/fd1az/dexprice/internal/apperror"
)

func TestNew_DefaultsFromCode(t *testing.T) {
	tests := []struct {
		name     string
		code     apperror.Code
		wantKind apperror.Kind
		wantMsg  string
	}{
		{"not found", apperror.CodePoolNotFound, apperror.KindNotFound, "Pool not found"},
		{"invalid", apperror.CodeInvalidSqrtPrice, apperror.KindInvalid, "Invalid sqrtPriceX96 value"},
		{"connection", apperror.CodeEthereumConnectionFailed, apperror.KindUnavailable, "Failed to connect to Ethereum node"},
		{"rate limit", apperror.CodeRateLimitExceeded, apperror.KindUnavailable, "Rate limit exceeded"},
		{"circuit", apperror.CodeCircuitOpen, apperror.KindUnavailable, "Circuit breaker is open"},
		{"internal", apperror.CodeRefreshFailed, apperror.KindInternal, "Price refresh failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := apperror.New(tt.code)
			if err.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", err.Kind, tt.wantKind)
			}
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
		})
	}
}

func TestIsUnavailable_WalksChain(t *testing.T) {
	rpc := apperror.External(apperror.CodeEthereumRPCError, "eth_call", errors.New("eof"))
	wrapped := apperror.New(apperror.CodeRefreshFailed, apperror.WithCause(fmt.Errorf("pool 0xabc: %w", rpc)))

	if !apperror.IsUnavailable(wrapped) {
		t.Error("refresh failure caused by rpc error should be unavailable")
	}
	if apperror.IsUnavailable(apperror.New(apperror.CodeRefreshFailed, apperror.WithCause(errors.New("bad data")))) {
		t.Error("refresh failure with plain cause should not be unavailable")
	}
	if apperror.IsUnavailable(nil) {
		t.Error("nil should not be unavailable")
	}
}

func TestSummary(t *testing.T) {
	err := apperror.NotFound(apperror.CodeTokenNotFound, "0xabc")
	if got := apperror.Summary(err); got != "Token not found: 0xabc" {
		t.Errorf("Summary() = %q", got)
	}
	if got := apperror.Summary(errors.New("plain")); got != "plain" {
		t.Errorf("Summary(plain) = %q", got)
	}
	if got := err.Error(); got != "TOKEN_NOT_FOUND: Token not found (0xabc)" {
		t.Errorf("Error() = %q", got)
	}
}

func TestWrap_PreservesCauseAndCode(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := apperror.Wrap(cause, apperror.CodeStorageConnectionFailed, "postgres")

	if !errors.Is(err, cause) {
		t.Error("wrapped error should unwrap to cause")
	}
	if apperror.GetCode(err) != apperror.CodeStorageConnectionFailed {
		t.Errorf("code = %s", apperror.GetCode(err))
	}

	again := apperror.Wrap(err, apperror.CodeInternalError, "other")
	if again.Code != apperror.CodeStorageConnectionFailed {
		t.Errorf("rewrap changed code to %s", again.Code)
	}
	if again.Context != "postgres" {
		t.Errorf("rewrap changed context to %q", again.Context)
	}
}

func TestIs_ComparesCodes(t *testing.T) {
	a := apperror.New(apperror.CodePoolReadFailed, apperror.WithContext("0xabc"))
	b := apperror.New(apperror.CodePoolReadFailed)

	if !errors.Is(a, b) {
		t.Error("errors with same code should match")
	}
	if errors.Is(a, apperror.New(apperror.CodeTokenReadFailed)) {
		t.Error("errors with different codes should not match")
	}
	if apperror.GetCode(errors.New("plain")) != apperror.CodeUnknownError {
		t.Error("plain error should map to CodeUnknownError")
	}
}
