package audioio

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
)

// ErrBackendUnavailable is returned for a backend this platform cannot run.
var ErrBackendUnavailable = errors.New("audioio: backend unavailable")

// ResolveBackend turns BackendAuto into ALSA on Linux (the Raspberry Pi) and
// the mock everywhere else. Explicit backends are returned unchanged.
func ResolveBackend(b Backend) Backend {
	if b != BackendAuto && b != "" {
		return b
	}
	if runtime.GOOS == "linux" {
		return BackendALSA
	}
	return BackendMock
}

// NewSource opens the microphone backend named by cfg.Backend.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	backend, logger, err := prepare(&cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("microphone backend",
		"backend", backend,
		"device", cfg.Device,
		"sample_rate", cfg.SampleRate,
		"frame_samples", cfg.BufferSize(),
	)

	switch backend {
	case BackendALSA:
		return newALSASource(cfg, logger)
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrBackendUnavailable, backend)
}

// NewSink opens the speaker backend named by cfg.Backend.
func NewSink(cfg Config, logger *slog.Logger) (Sink, error) {
	backend, logger, err := prepare(&cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("speaker backend",
		"backend", backend,
		"device", cfg.Device,
		"sample_rate", cfg.SampleRate,
	)

	switch backend {
	case BackendALSA:
		return newALSASink(cfg, logger)
	case BackendMock:
		return NewMockSink(cfg, logger), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrBackendUnavailable, backend)
}

func prepare(cfg *Config, logger *slog.Logger) (Backend, *slog.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return "", nil, fmt.Errorf("audioio: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return ResolveBackend(cfg.Backend), logger, nil
}
