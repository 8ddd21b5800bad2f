package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-thor/restproxy/invocation"
)

// Kind classifies an error raised on the dispatch path
type Kind string

// Error kinds
const (
	KindUnknown                Kind = "unknown"
	KindConfiguration          Kind = "configuration"
	KindUnsupportedContentType Kind = "unsupported_content_type"
	KindSerialization          Kind = "serialization"
	KindTransport              Kind = "transport"
	KindRemoteStatus           Kind = "remote_status"
	KindDispatch               Kind = "dispatch"
)

// Capability is a piece of diagnostic context an error can carry once attached.
type Capability uint8

const (
	// CapInvocation lets the dispatcher attach the originating invocation
	CapInvocation Capability = 1 << iota
	// CapResponse lets the dispatcher attach the response headers
	CapResponse
)

// Sentinels matched by kind with errors.Is
var (
	ErrConfiguration          = &Error{Kind: KindConfiguration}
	ErrUnsupportedContentType = &Error{Kind: KindUnsupportedContentType}
	ErrSerialization          = &Error{Kind: KindSerialization}
	ErrTransport              = &Error{Kind: KindTransport}
	ErrRemoteStatus           = &Error{Kind: KindRemoteStatus}
	ErrDispatch               = &Error{Kind: KindDispatch}

	// ErrNotAccepted is returned when attaching context the error does not accept
	ErrNotAccepted = errors.New("restproxy(errors): capability not accepted")
	// ErrAlreadyAttached is returned when context was already attached
	ErrAlreadyAttached = errors.New("restproxy(errors): context already attached")
)

// Error represents an error with additional context
type Error struct {
	Kind    Kind
	Message string
	Cause   error

	// StatusCode and Body are set on remote status errors
	StatusCode int
	Body       []byte
	// Detail is the error body decoded into the method's declared error type
	Detail any

	// Invocation is the request that produced the error, once attached
	Invocation *invocation.Invocation
	// ResponseHeaders are the response headers, once attached
	ResponseHeaders http.Header

	caps     Capability
	attached Capability
}

// Error returns the error message
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Kind == KindDispatch && e.Invocation != nil {
		msg += ": " + e.Invocation.String()
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the cause, or the decoded detail when it is itself an error
func (e *Error) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	if d, ok := e.Detail.(error); ok {
		return d
	}
	return nil
}

// Is matches sentinels of the same kind that carry no message
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Cause == nil && t.Kind == e.Kind
}

// Accepts reports whether c can be attached to the error
func (e *Error) Accepts(c Capability) bool {
	return e.caps&c != 0
}

// SetInvocation attaches the originating invocation. It can be done once.
func (e *Error) SetInvocation(inv *invocation.Invocation) error {
	if !e.Accepts(CapInvocation) {
		return ErrNotAccepted
	}
	if e.attached&CapInvocation != 0 {
		return ErrAlreadyAttached
	}
	e.Invocation = inv
	e.attached |= CapInvocation
	return nil
}

// SetResponseHeaders attaches the response headers. It can be done once.
func (e *Error) SetResponseHeaders(h http.Header) error {
	if !e.Accepts(CapResponse) {
		return ErrNotAccepted
	}
	if e.attached&CapResponse != 0 {
		return ErrAlreadyAttached
	}
	e.ResponseHeaders = h.Clone()
	e.attached |= CapResponse
	return nil
}

// RetryAfter returns the delay advertised by the attached response headers
func (e *Error) RetryAfter() (time.Duration, bool) {
	if e.ResponseHeaders == nil {
		return 0, false
	}
	return invocation.ParseRetryAfter(e.ResponseHeaders, time.Now())
}

// New creates a new error
func New(kind Kind, message string) error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

// Newf creates a new error with formatted message
func Newf(kind Kind, format string, args ...any) error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with additional context
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   err,
	}
}

// Configuration reports missing or invalid routing metadata
func Configuration(format string, args ...any) error {
	return Newf(KindConfiguration, format, args...)
}

// UnsupportedContentType reports a content type with no registered codec
func UnsupportedContentType(contentType string) error {
	if contentType == "" {
		return New(KindUnsupportedContentType, "no content type declared")
	}
	return Newf(KindUnsupportedContentType, "no codec registered for %q", contentType)
}

// Serialization reports an argument binding or encoding failure. err may be nil.
func Serialization(err error, format string, args ...any) error {
	return &Error{
		Kind:    KindSerialization,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// Transport wraps an error raised by the transport
func Transport(err error, message string) error {
	return Wrap(KindTransport, err, message)
}

// RemoteStatus reports a non-2xx response. It accepts both the invocation and the response headers.
func RemoteStatus(status int, body []byte, detail any) *Error {
	return &Error{
		Kind:       KindRemoteStatus,
		Message:    fmt.Sprintf("HTTP status %d", status),
		StatusCode: status,
		Body:       body,
		Detail:     detail,
		caps:       CapInvocation | CapResponse,
	}
}

// Dispatch wraps an error no capability claimed, carrying the invocation (possibly nil)
func Dispatch(cause error, inv *invocation.Invocation) *Error {
	return &Error{
		Kind:       KindDispatch,
		Message:    "unexpected error",
		Cause:      cause,
		Invocation: inv,
		attached:   CapInvocation,
	}
}

// WithCapabilities returns a copy of e that accepts caps in addition to its own
func WithCapabilities(e *Error, caps Capability) *Error {
	cp := *e
	cp.caps |= caps
	return &cp
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}

// KindOf returns the error kind
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Message returns the error message
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// Cause returns the cause of the error
func Cause(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Cause
	}
	return nil
}
