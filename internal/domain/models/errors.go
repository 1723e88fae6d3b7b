package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks caller-correctable conditions (bad ticker, short history, bad split size).
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks missing data or artifacts.
	ErrNotFound = errors.New("not found")
)

var (
	ErrInsufficientHistory = fmt.Errorf("%w: not enough history to generate features", ErrInvalidInput)
	ErrModelsNotLoaded     = fmt.Errorf("%w: models not loaded", ErrNotFound)
)
