package data

import "errors"

var (
	// ErrUnavailable is returned once the dataset failed to open.
	ErrUnavailable = errors.New("geo database unavailable")
	// ErrClosed is returned after the database has been closed.
	ErrClosed = errors.New("geo database closed")
)
