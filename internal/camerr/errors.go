// Package camerr holds the error taxonomy shared by every camcorder layer.
//
// Public calls return exactly one of these sentinels (possibly wrapped). Callers
// match them with errors.Is; multi-attribute calls additionally return an
// *AttributeError naming the first attribute that failed.
package camerr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument reports a bad handle, unknown attribute name or bad value
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotInitialized reports an operation issued before its required prior step
	ErrNotInitialized = errors.New("not initialized")
	// ErrInvalidState reports an operation that is illegal in the current device state
	ErrInvalidState = errors.New("invalid state")
	// ErrCommandBusy reports that another command holds the command lock
	ErrCommandBusy = errors.New("command busy")
	// ErrResourceCreation reports a failure to create a native node or bin
	ErrResourceCreation = errors.New("resource creation failed")
	// ErrGraphLink reports a failure to link two native nodes
	ErrGraphLink = errors.New("graph link failed")
	// ErrEncoderContainerMismatch reports a codec/container pair the matrix forbids
	ErrEncoderContainerMismatch = errors.New("wrong codec/container combination")
	// ErrResponseTimeout reports a native state change that was not confirmed in time
	ErrResponseTimeout = errors.New("response timeout")
	// ErrStorageExhausted is raised when the output medium has no space left
	ErrStorageExhausted = errors.New("storage exhausted")
	// ErrTimeLimitReached is raised when the recording time limit elapsed
	ErrTimeLimitReached = errors.New("time limit reached")

	// ErrNotFound reports a configuration key that is neither configured nor known
	ErrNotFound = errors.New("not found")
	// ErrReadOnly reports a write to a read-only or disabled attribute
	ErrReadOnly = errors.New("attribute is read-only")
	// ErrOutOfRange reports a value outside the attribute's validity constraint
	ErrOutOfRange = errors.New("value out of range")
	// ErrReconfigureBusy reports a concurrent live reconfiguration
	ErrReconfigureBusy = errors.New("reconfiguration busy")
	// ErrNotSupported reports a feature the device does not offer
	ErrNotSupported = errors.New("not supported")
)

// AttributeError attaches the name of the attribute that failed to an error
type AttributeError struct {
	Name string
	Err  error
}

// Error implements error
func (e *AttributeError) Error() string {
	return fmt.Sprintf("attribute %q: %v", e.Name, e.Err)
}

// Unwrap exposes the underlying sentinel
func (e *AttributeError) Unwrap() error {
	return e.Err
}

// Attr wraps err with the attribute name
func Attr(name string, err error) error {
	if err == nil {
		return nil
	}
	return &AttributeError{Name: name, Err: err}
}

// FailingAttribute returns the attribute name carried by err, if any
func FailingAttribute(err error) string {
	var ae *AttributeError
	if errors.As(err, &ae) {
		return ae.Name
	}
	return ""
}
