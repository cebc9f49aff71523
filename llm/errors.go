package llm

import (
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Kind classifies every failure a generation can end with.
type Kind int

const (
	KindUnknown Kind = iota
	KindMissingCredential
	KindProviderWarmingUp
	KindRateLimited
	KindNetworkFailure
	KindParseError
	KindProviderUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindMissingCredential:
		return "missing_credential"
	case KindProviderWarmingUp:
		return "provider_warming_up"
	case KindRateLimited:
		return "rate_limited"
	case KindNetworkFailure:
		return "network_failure"
	case KindParseError:
		return "parse_error"
	case KindProviderUnavailable:
		return "provider_unavailable"
	default:
		return "unknown"
	}
}

// Error is the tagged error every adapter fails with.
type Error struct {
	Kind     Kind
	Provider string // family or model the error came from
	Status   int    // HTTP status, when there was one
	Message  string // user-facing text; derived from Kind when empty
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindUnknown if err is not tagged.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// GenericFailureText is shown for transport failures.
const GenericFailureText = "Sorry, I encountered an error processing your request. Please check your connection or API keys."

// UserMessage turns any error into the text written into the placeholder
// message. It never returns an empty string.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return "Error: " + err.Error()
	}
	switch e.Kind {
	case KindMissingCredential:
		return fmt.Sprintf("API key for %s is not configured. Set it and try again.", e.Provider)
	case KindProviderWarmingUp:
		if e.Message != "" {
			return e.Message
		}
		return fmt.Sprintf("%s is warming up. Please try again in a moment.", e.Provider)
	case KindRateLimited:
		return "Too many requests. Please wait a moment before trying again."
	case KindNetworkFailure:
		return GenericFailureText
	case KindProviderUnavailable:
		if e.Message != "" {
			return e.Message
		}
		return fmt.Sprintf("Model %s is not available.", e.Provider)
	default:
		msg := e.Message
		if msg == "" && e.Err != nil {
			msg = e.Err.Error()
		}
		if msg == "" {
			msg = "unknown error"
		}
		return "Error: " + msg
	}
}

func errMissingCredential(provider string) *Error {
	return &Error{Kind: KindMissingCredential, Provider: provider}
}

func errUnavailable(modelID string, reason string) *Error {
	return &Error{
		Kind:     KindProviderUnavailable,
		Provider: modelID,
		Message:  fmt.Sprintf("Model %s is not available: %s", modelID, reason),
	}
}

// statusError maps an HTTP failure status onto the taxonomy. warmUp is the
// user-facing text for a cold-start status.
func statusError(provider string, status int, body string, warmUp string) *Error {
	switch status {
	case 503:
		return &Error{Kind: KindProviderWarmingUp, Provider: provider, Status: status, Message: warmUp}
	case 429:
		return &Error{Kind: KindRateLimited, Provider: provider, Status: status}
	case 401, 403:
		return &Error{Kind: KindMissingCredential, Provider: provider, Status: status,
			Err: fmt.Errorf("status %d: %s", status, body)}
	default:
		return &Error{Kind: KindUnknown, Provider: provider, Status: status,
			Message: fmt.Sprintf("%s API error: %d - %s", provider, status, body)}
	}
}

// classifyTransport tags an untagged error. Transport failures become
// NetworkFailure; anything else is Unknown.
func classifyTransport(provider string, err error) error {
	if err == nil {
		return nil
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return err
	}
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return &Error{Kind: KindNetworkFailure, Provider: provider, Err: err}
	}
	return &Error{Kind: KindUnknown, Provider: provider, Err: err}
}
