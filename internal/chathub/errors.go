package chathub

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated   = errors.New("caller is not authenticated")
	ErrForbidden         = errors.New("forbidden")
	ErrEmptyContent      = errors.New("message content is empty")
	ErrContentTooLong    = errors.New("message content is too long")
	ErrInvalidSignalType = errors.New("unknown signal type")
)

// Denial reasons. Each wraps ErrForbidden.
var (
	ErrSessionNotFound = fmt.Errorf("%w: session not found", ErrForbidden)
	ErrSessionEnded    = fmt.Errorf("%w: session has ended", ErrForbidden)
	ErrNotParticipant  = fmt.Errorf("%w: caller is not a participant", ErrForbidden)
	ErrVideoDisabled   = fmt.Errorf("%w: session has no video", ErrForbidden)
	ErrBadRecipient    = fmt.Errorf("%w: recipient is not the session partner", ErrForbidden)
)
