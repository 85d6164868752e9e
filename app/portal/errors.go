package portal

import (
	"errors"
	"fmt"
	"net"
)

// ErrUnreachable matches any TransportError whose cause is a dial or DNS failure.
var ErrUnreachable = errors.New("host unreachable")

// TransportError is a failed exchange with the portal. StatusCode is zero when no response
// was received.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 && e.Err != nil {
		return fmt.Sprintf("%s %s: HTTP %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: HTTP %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrUnreachable && e.Unreachable()
}

// Unreachable reports whether the host could not be contacted at all. Such failures end the
// stage instead of being recorded per item.
func (e *TransportError) Unreachable() bool {
	if e.Err == nil {
		return false
	}

	var dnsErr *net.DNSError
	if errors.As(e.Err, &dnsErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(e.Err, &opErr) {
		return opErr.Op == "dial"
	}

	return false
}

// ParseError means the fetched document lacked the structure we rely on.
type ParseError struct {
	URL    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %s", e.URL, e.Reason)
}

// IsUnreachable is a shorthand for errors.Is(err, ErrUnreachable).
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}
