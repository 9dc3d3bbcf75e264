// Package serviceerr defines the classified error taxonomy surfaced by the
// automation flows and the token service. Callers branch on the Code, never
// on error strings.
package serviceerr

import (
	"errors"
	"net/http"
)

type Code string

const (
	CodeSessionNotFound         Code = "session_not_found"
	CodeSessionInvalid          Code = "session_invalid"
	CodeTokenExpired            Code = "token_expired"
	CodeTokenInvalid            Code = "token_invalid"
	CodeLoginFormNotDetected    Code = "login_form_not_detected"
	CodeLoginOutcomeUnconfirmed Code = "login_outcome_unconfirmed"
	CodeMessageSendFailed       Code = "message_send_failed"
	CodeAutomationFault         Code = "automation_fault"
	CodeStoreUnavailable        Code = "store_unavailable"
)

// Message-send failure reasons.
const (
	ReasonInvitePending         = "invite-pending"
	ReasonRecipientInputMissing = "recipient-input-missing"
	ReasonNoSuggestion          = "no-suggestion"
	ReasonComposerMissing       = "composer-missing"
	ReasonSendControlMissing    = "send-control-missing"
)

type Error struct {
	Err         Code
	Description string
	// Reason carries the fine-grained message-send failure cause.
	Reason string
	cause  error
}

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Err)
	}
	return string(e.Err) + ": " + e.Description
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error carrying the same code, so callers can use
// errors.Is against the predefined values below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Err == e.Err
}

func (e *Error) HTTPStatus() int {
	switch e.Err {
	case CodeSessionNotFound, CodeSessionInvalid, CodeTokenExpired, CodeTokenInvalid, CodeLoginOutcomeUnconfirmed:
		return http.StatusUnauthorized
	case CodeLoginFormNotDetected:
		return http.StatusBadGateway
	case CodeMessageSendFailed:
		if e.Reason == ReasonInvitePending {
			return http.StatusForbidden
		}
		return http.StatusInternalServerError
	case CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var (
	ErrSessionNotFound         = &Error{Err: CodeSessionNotFound, Description: "session not found, log in again"}
	ErrSessionInvalid          = &Error{Err: CodeSessionInvalid, Description: "invalid session, log in again"}
	ErrTokenExpired            = &Error{Err: CodeTokenExpired, Description: "token has expired"}
	ErrTokenInvalid            = &Error{Err: CodeTokenInvalid, Description: "invalid token"}
	ErrLoginFormNotDetected    = &Error{Err: CodeLoginFormNotDetected, Description: "login form not detected on the page"}
	ErrLoginOutcomeUnconfirmed = &Error{Err: CodeLoginOutcomeUnconfirmed, Description: "login outcome could not be confirmed"}
	ErrStoreUnavailable        = &Error{Err: CodeStoreUnavailable, Description: "session store unavailable"}
)

// MessageSendFailed classifies a terminal message-send failure by reason.
func MessageSendFailed(reason string) *Error {
	return &Error{
		Err:         CodeMessageSendFailed,
		Description: "message sending failed: " + reason,
		Reason:      reason,
	}
}

// AutomationFault wraps an unclassified browser-engine failure with the
// stage at which it occurred.
func AutomationFault(stage string, cause error) *Error {
	desc := "automation failure at " + stage
	if cause != nil {
		desc += ": " + cause.Error()
	}
	return &Error{
		Err:         CodeAutomationFault,
		Description: desc,
		cause:       cause,
	}
}

// StoreUnavailable wraps a session-store or token-store I/O failure. It is
// fatal for the request but not for the process.
func StoreUnavailable(cause error) *Error {
	return &Error{
		Err:         CodeStoreUnavailable,
		Description: "session store unavailable",
		cause:       cause,
	}
}

// CodeOf extracts the classification code of err, or CodeAutomationFault if
// the error is not part of the taxonomy.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Err
	}
	return CodeAutomationFault
}
