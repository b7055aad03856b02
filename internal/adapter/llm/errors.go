package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"
)

// ErrorKind classifies upstream failures so callers can report them
// without parsing provider messages.
type ErrorKind string

const (
	KindAuth        ErrorKind = "auth"
	KindRateLimited ErrorKind = "rate_limited"
	KindTimeout     ErrorKind = "timeout"
	KindBadRequest  ErrorKind = "bad_request"
	KindUpstream    ErrorKind = "upstream"
	KindEmpty       ErrorKind = "empty_response"
)

// Error is a classified generation failure.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	msg := "sql generation failed: " + string(e.Kind)
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

func kindForStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout
	case code >= 400 && code < 500:
		return KindBadRequest
	default:
		return KindUpstream
	}
}

// classify maps provider SDK errors onto Error.
func classify(err error) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Cause: err}
	}

	var oaiAPI *openai.APIError
	if errors.As(err, &oaiAPI) {
		return &Error{Kind: kindForStatus(oaiAPI.HTTPStatusCode), StatusCode: oaiAPI.HTTPStatusCode, Cause: err}
	}
	var oaiReq *openai.RequestError
	if errors.As(err, &oaiReq) {
		return &Error{Kind: kindForStatus(oaiReq.HTTPStatusCode), StatusCode: oaiReq.HTTPStatusCode, Cause: err}
	}

	var antAPI *anthropic.APIError
	if errors.As(err, &antAPI) {
		e := &Error{Kind: KindUpstream, Cause: err}
		switch {
		case antAPI.IsAuthenticationErr(), antAPI.IsPermissionErr():
			e.Kind, e.StatusCode = KindAuth, http.StatusUnauthorized
		case antAPI.IsRateLimitErr():
			e.Kind, e.StatusCode = KindRateLimited, http.StatusTooManyRequests
		case antAPI.IsInvalidRequestErr():
			e.Kind, e.StatusCode = KindBadRequest, http.StatusBadRequest
		}
		return e
	}
	var antReq *anthropic.RequestError
	if errors.As(err, &antReq) {
		return &Error{Kind: kindForStatus(antReq.StatusCode), StatusCode: antReq.StatusCode, Cause: err}
	}

	return &Error{Kind: KindUpstream, Cause: err}
}
