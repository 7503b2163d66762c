package service

import "errors"

// ErrNotStarted is returned by every operation before Start or after Stop.
var ErrNotStarted = errors.New("service not started")
