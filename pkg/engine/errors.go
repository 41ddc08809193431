package engine

import (
	"errors"
	"fmt"
	"net"

	"github.com/teslashibe/go-tonypi/pkg/inference"
	"github.com/teslashibe/go-tonypi/pkg/stt"
	"github.com/teslashibe/go-tonypi/pkg/tts"
)

var (
	// ErrGoodbye is returned by Run after the goodbye phrase was heard
	// while Idle. The process should exit cleanly.
	ErrGoodbye = errors.New("engine: goodbye")

	// ErrHardwareInit marks a device that could not be opened at startup.
	ErrHardwareInit = errors.New("engine: hardware init failed")
)

// HardwareError wraps err as a startup failure of component.
func HardwareError(component string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrHardwareInit, component, err)
}

// IsHardwareError reports whether err is a startup device failure.
func IsHardwareError(err error) bool {
	return errors.Is(err, ErrHardwareInit)
}

// IsNetworkError reports whether err came from a remote service: an API
// error from the model, speech or synthesis endpoints, or a transport
// failure.
func IsNetworkError(err error) bool {
	var (
		infErr *inference.APIError
		infPrv *inference.ProviderError
		sttErr *stt.APIError
		ttsErr *tts.APIError
		ttsPrv *tts.ProviderError
		netErr net.Error
	)
	return errors.As(err, &infErr) ||
		errors.As(err, &infPrv) ||
		errors.As(err, &sttErr) ||
		errors.As(err, &ttsErr) ||
		errors.As(err, &ttsPrv) ||
		errors.As(err, &netErr)
}
