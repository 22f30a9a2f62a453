package ticketing

import "errors"

// Kind classifies a failure the way the booking flow needs to react to it.
type Kind string

const (
	// KindValidation is a local pre-network rejection; no request was sent.
	KindValidation Kind = "validation"

	// KindAuth is a remote 401/403-class response. The session may be
	// stale but is never cleared automatically.
	KindAuth Kind = "auth"

	// KindRemote is any other non-2xx response or transport failure.
	KindRemote Kind = "remote"

	// KindEncoding is a credential encoder invariant violation. A
	// programming defect, not a user-facing condition.
	KindEncoding Kind = "encoding"
)

// Error carries the failure kind together with the remote-provided message.
// The message is surfaced unmodified; callers own any fallback wording.
type Error struct {
	Kind    Kind
	Message string
	Status  int // HTTP status, 0 for local or transport failures
}

func (e *Error) Error() string {
	return e.Message
}

func NewValidationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func NewEncodingError(msg string) *Error {
	return &Error{Kind: KindEncoding, Message: msg}
}

// KindOf extracts the failure kind from an error chain. Unclassified
// errors report as remote failures.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindRemote
}
