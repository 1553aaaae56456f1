package service

import "errors"

// ErrSuperseded is returned when a newer request replaced the one in flight
// before its result could be applied.
var ErrSuperseded = errors.New("superseded by a newer request")
