package restproxy

import (
	"github.com/hashicorp/go-hclog"

	"github.com/go-thor/restproxy/errors"
	"github.com/go-thor/restproxy/invocation"
	"github.com/go-thor/restproxy/transport"
)

// ErrorEnricher attaches the invocation and response headers to errors that
// accept them, and optionally wraps errors that accept neither.
type ErrorEnricher struct {
	wrap   bool
	logger hclog.Logger
}

// NewErrorEnricher creates an enricher. With wrap set, unclaimed errors are
// returned as dispatch errors.
func NewErrorEnricher(wrap bool, logger hclog.Logger) *ErrorEnricher {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &ErrorEnricher{wrap: wrap, logger: logger}
}

// Handle returns the error to surface for err. inv and h may be nil when the
// call failed before they existed.
func (e *ErrorEnricher) Handle(err error, inv *invocation.Invocation, h transport.Handle) error {
	if err == nil {
		return nil
	}

	claimed := false
	var target *errors.Error
	if errors.As(err, &target) {
		// Only a successful attachment claims the error
		if target.Accepts(errors.CapInvocation) {
			if aerr := target.SetInvocation(inv); aerr != nil {
				e.logger.Warn("failed to attach invocation", "invocation", inv.String(), "error", aerr)
			} else {
				claimed = true
			}
		}
		if target.Accepts(errors.CapResponse) && h != nil {
			if aerr := target.SetResponseHeaders(h.Header()); aerr != nil {
				e.logger.Warn("failed to attach response headers", "invocation", inv.String(), "error", aerr)
			} else {
				claimed = true
			}
		}
	}

	if !claimed && e.wrap {
		return errors.Dispatch(err, inv)
	}
	return err
}
