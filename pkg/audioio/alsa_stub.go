//go:build !linux

package audioio

import (
	"fmt"
	"log/slog"
	"runtime"
)

func errNoALSA() error {
	return fmt.Errorf("%w: alsa needs linux, running on %s", ErrBackendUnavailable, runtime.GOOS)
}

func newALSASource(Config, *slog.Logger) (Source, error) { return nil, errNoALSA() }

func newALSASink(Config, *slog.Logger) (Sink, error) { return nil, errNoALSA() }
