package optim

import "github.com/pkg/errors"

// Sentinel errors for the optim package.
// Use errors.Is to check: errors.Is(err, optim.ErrInvalidState)
var (
	// ErrUnsupportedInput is returned when an algorithm receives a gradient
	// representation it cannot handle, such as a sparse gradient for LAMB.
	ErrUnsupportedInput = errors.New("optim: unsupported input")

	// ErrInvalidState is returned when a multi-phase protocol is driven out
	// of order, such as SAM's SecondStep without a prior FirstStep.
	ErrInvalidState = errors.New("optim: invalid state")

	// ErrConfiguration is returned for invalid hyperparameters, unknown
	// optimizer names, bad parameter groups, and gradients whose shape does
	// not match their parameter.
	ErrConfiguration = errors.New("optim: configuration error")
)

func configErrorf(format string, args ...any) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}
