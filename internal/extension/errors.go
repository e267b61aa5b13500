package extension

import "errors"

var (
	// ErrExtensionNotFound means the module is not in the registry.
	ErrExtensionNotFound = errors.New("extension not found")

	// ErrAlreadyLoaded means the module is already live.
	ErrAlreadyLoaded = errors.New("extension already loaded")

	// ErrNotLoaded means there is nothing to unload.
	ErrNotLoaded = errors.New("extension not loaded")

	// ErrLoadFailed means a load attempt errored or panicked.
	ErrLoadFailed = errors.New("extension load failed")

	// ErrCommandConflict means a command name is already taken by
	// another loaded extension.
	ErrCommandConflict = errors.New("extension command conflict")
)
