package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func apiError(code int) error {
	return fmt.Errorf("request failed: %w", &googleapi.Error{Code: code, Message: "provider detail"})
}

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want failureKind
	}{
		{"unauthorized", apiError(http.StatusUnauthorized), failureBadCredentials},
		{"forbidden", apiError(http.StatusForbidden), failureBadCredentials},
		{"too many requests", apiError(http.StatusTooManyRequests), failureQuota},
		{"model not found", apiError(http.StatusNotFound), failureModelUnavailable},
		{"not implemented", apiError(http.StatusNotImplemented), failureModelUnavailable},
		{"bad gateway", apiError(http.StatusBadGateway), failureConnectivity},
		{"service unavailable", apiError(http.StatusServiceUnavailable), failureConnectivity},
		{"server error", apiError(http.StatusInternalServerError), failureUnknown},
		{"deadline exceeded", context.DeadlineExceeded, failureConnectivity},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), failureConnectivity},
		{"dial error", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, failureConnectivity},
		{"plain error", errors.New("something odd"), failureUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, classifyFailure(tt.err))
		})
	}
}

func TestUserMessagesNeverExposeProviderText(t *testing.T) {
	kinds := []failureKind{
		failureUnknown, failureBadCredentials, failureQuota,
		failureConnectivity, failureModelUnavailable,
	}
	seen := map[string]bool{}
	for _, k := range kinds {
		msg := k.userMessage()
		require.NotEmpty(t, msg)
		require.NotContains(t, msg, "provider detail")
		require.False(t, seen[msg], "each kind has its own stable message")
		seen[msg] = true
	}
}

func TestClassifyTimeoutNetError(t *testing.T) {
	var err error = &net.DNSError{Err: "timeout", IsTimeout: true}
	require.Equal(t, failureConnectivity, classifyFailure(err))
}

func TestParseToolKind(t *testing.T) {
	kind, ok := ParseToolKind("Summarize")
	require.True(t, ok)
	require.Equal(t, ToolSummarize, kind)

	_, ok = ParseToolKind("translate")
	require.False(t, ok)

	for _, k := range []ToolKind{ToolSummarize, ToolNextSteps, ToolTasks} {
		require.NotEmpty(t, k.LeadIn())
	}
}
