package msgext

import (
	"errors"
	"fmt"
)

// ErrUnexpectedActivity reports that a dispatcher ran for an activity its
// selector should never have matched.
var ErrUnexpectedActivity = errors.New("unexpected activity for message extension route")

// MismatchError carries the activity that failed a dispatcher's invariant check.
type MismatchError struct {
	Operation     string
	Type          string
	Name          string
	PreviewAction string
}

func (e *MismatchError) Error() string {
	if e == nil {
		return ""
	}

	msg := fmt.Sprintf("unexpected MessageExtensions.%s() triggered for activity type %q name %q", e.Operation, e.Type, e.Name)
	if e.PreviewAction != "" {
		msg += fmt.Sprintf(" preview action %q", e.PreviewAction)
	}

	return msg
}

func (e *MismatchError) Unwrap() error {
	return ErrUnexpectedActivity
}
