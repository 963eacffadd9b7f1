// Package oracle talks to the web-based conversational AI through a local
// browser bridge. The bridge owns the browser session and login; this
// package only exchanges prompt and response text with it.
package oracle

import (
	"context"
	"errors"
)

// Channel is one conversational session with the oracle. Context is
// preserved across Send calls within a run; a new run gets a new Channel.
type Channel interface {
	Send(ctx context.Context, prompt string) (string, error)
}

var (
	// ErrUnavailable means the bridge or browser session is not ready.
	ErrUnavailable = errors.New("oracle unavailable")
	// ErrTimeout means no response arrived within the allotted window.
	ErrTimeout = errors.New("oracle timeout")
)
