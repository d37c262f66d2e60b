package apperr

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrConflict           = errors.New("conflict")
	ErrInvalidIdentity    = errors.New("invalid note identity")
	ErrZoomOutOfRange     = errors.New("zoom out of range")
	ErrSimulationNotReady = errors.New("simulation not ready")
)
