package core

import (
	"context"
	"errors"
	"net"
	"net/http"

	"google.golang.org/api/googleapi"
)

// failureKind is the enumerated cause of an upstream model failure. The raw
// provider error is classified exactly once, at the gateway boundary; callers
// only ever see the stable user-facing message for the kind.
type failureKind int

const (
	failureUnknown failureKind = iota
	failureBadCredentials
	failureQuota
	failureConnectivity
	failureModelUnavailable
)

func classifyFailure(err error) failureKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return failureConnectivity
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return failureBadCredentials
		case http.StatusTooManyRequests:
			return failureQuota
		case http.StatusNotFound, http.StatusNotImplemented:
			return failureModelUnavailable
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return failureConnectivity
		}
		return failureUnknown
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return failureConnectivity
	}

	return failureUnknown
}

func (k failureKind) userMessage() string {
	switch k {
	case failureBadCredentials:
		return "The AI service rejected this server's credentials. Model replies are disabled until the configuration is fixed."
	case failureQuota:
		return "The AI service quota has been exhausted. Please try again later."
	case failureConnectivity:
		return "I couldn't reach the AI service. Please try again in a moment."
	case failureModelUnavailable:
		return "The configured AI model is unavailable."
	default:
		return "Something went wrong while generating a response. Please try again."
	}
}
