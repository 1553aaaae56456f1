package entities

import "errors"

// Error kinds shared by the providers and the reading session.
var (
	ErrNetworkFailure    = errors.New("network failure")
	ErrDataInconsistency = errors.New("data inconsistency")
	ErrInvalidReference  = errors.New("invalid reference")
	ErrPlaybackFailure   = errors.New("playback failure")
)
