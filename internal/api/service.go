// Package api talks to an asciinema-compatible session sharing server.
package api

import (
	"context"
	"io"
)

// Service links this installation to a user account and uploads recordings.
type Service interface {
	// Authenticate prints the URL that links the install id to an account.
	Authenticate(w io.Writer) error
	// Upload sends the recording at path and returns its public URL.
	Upload(ctx context.Context, path string) (string, error)
}
