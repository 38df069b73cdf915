package engine

import (
	"github.com/google/uuid"
)

// ConfigWarning reports a startup setting that was ignored. Defaults stay in
// effect for that setting.
type ConfigWarning struct {
	Param  string
	Value  string
	Reason string
}

func (w *ConfigWarning) Error() string {
	if w.Value == "" {
		return w.Param + ": " + w.Reason
	}
	return w.Param + "=" + w.Value + ": " + w.Reason
}

// RunWarning reports a non-fatal problem while handling mail
type RunWarning struct {
	Message string
}

func (w *RunWarning) Error() string {
	return w.Message
}

func newEventID() string {
	return uuid.NewString()
}
