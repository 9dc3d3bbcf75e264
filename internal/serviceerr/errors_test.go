package serviceerr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/instapipe/dm-manager/internal/serviceerr"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name        string
		err         *serviceerr.Error
		expectedMsg string
	}{
		{
			name:        "Error with description",
			err:         &serviceerr.Error{Err: serviceerr.CodeTokenInvalid, Description: "signature mismatch"},
			expectedMsg: "token_invalid: signature mismatch",
		},
		{
			name:        "Error without description",
			err:         &serviceerr.Error{Err: serviceerr.CodeTokenExpired},
			expectedMsg: "token_expired",
		},
		{
			name:        "Predefined error - ErrSessionNotFound",
			err:         serviceerr.ErrSessionNotFound,
			expectedMsg: "session_not_found: session not found, log in again",
		},
		{
			name:        "Message send failure carries the reason",
			err:         serviceerr.MessageSendFailed(serviceerr.ReasonNoSuggestion),
			expectedMsg: "message_send_failed: message sending failed: no-suggestion",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedMsg, tt.err.Error())
		})
	}
}

func TestError_Is(t *testing.T) {
	wrapped := fmt.Errorf("validating token: %w", serviceerr.ErrTokenExpired)
	assert.ErrorIs(t, wrapped, serviceerr.ErrTokenExpired)
	assert.NotErrorIs(t, wrapped, serviceerr.ErrTokenInvalid)

	// Two distinct values with the same code match each other.
	assert.ErrorIs(t, serviceerr.MessageSendFailed(serviceerr.ReasonInvitePending), serviceerr.MessageSendFailed(serviceerr.ReasonInvitePending))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("net::ERR_CONNECTION_RESET")
	fault := serviceerr.AutomationFault("navigate", cause)

	assert.ErrorIs(t, fault, cause)
	assert.Equal(t, serviceerr.CodeAutomationFault, serviceerr.CodeOf(fault))
}

func TestError_HTTPStatus(t *testing.T) {
	tests := []struct {
		name               string
		err                *serviceerr.Error
		expectedHTTPStatus int
	}{
		{name: "session not found", err: serviceerr.ErrSessionNotFound, expectedHTTPStatus: http.StatusUnauthorized},
		{name: "session invalid", err: serviceerr.ErrSessionInvalid, expectedHTTPStatus: http.StatusUnauthorized},
		{name: "token expired", err: serviceerr.ErrTokenExpired, expectedHTTPStatus: http.StatusUnauthorized},
		{name: "token invalid", err: serviceerr.ErrTokenInvalid, expectedHTTPStatus: http.StatusUnauthorized},
		{name: "login outcome unconfirmed maps to unauthorized", err: serviceerr.ErrLoginOutcomeUnconfirmed, expectedHTTPStatus: http.StatusUnauthorized},
		{name: "login form not detected", err: serviceerr.ErrLoginFormNotDetected, expectedHTTPStatus: http.StatusBadGateway},
		{name: "invite pending is forbidden", err: serviceerr.MessageSendFailed(serviceerr.ReasonInvitePending), expectedHTTPStatus: http.StatusForbidden},
		{name: "other send failures are internal", err: serviceerr.MessageSendFailed(serviceerr.ReasonComposerMissing), expectedHTTPStatus: http.StatusInternalServerError},
		{name: "store unavailable", err: serviceerr.ErrStoreUnavailable, expectedHTTPStatus: http.StatusServiceUnavailable},
		{name: "automation fault", err: serviceerr.AutomationFault("submit", nil), expectedHTTPStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedHTTPStatus, tt.err.HTTPStatus())
		})
	}
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, serviceerr.CodeTokenExpired, serviceerr.CodeOf(fmt.Errorf("wrap: %w", serviceerr.ErrTokenExpired)))
	assert.Equal(t, serviceerr.CodeAutomationFault, serviceerr.CodeOf(errors.New("raw engine error")))
}
