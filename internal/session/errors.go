package session

import "errors"

// Engine errors. Only ErrMissingRequiredAsset is ever surfaced to users;
// the rest indicate caller defects or ignored late intents.
var (
	ErrIndexOutOfRange      = errors.New("answer index out of range")
	ErrMissingRequiredAsset = errors.New("missing required asset")
	ErrNotInSetup           = errors.New("session already launched")
	ErrNotInProgress        = errors.New("session is not in progress")
	ErrUnknownView          = errors.New("unknown view key")
	ErrLoopClosed           = errors.New("session loop is closed")
)
