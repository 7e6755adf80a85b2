package audio

import "errors"

// ErrAlreadyRunning is returned by Start when the pipeline is already
// running or paused.
var ErrAlreadyRunning = errors.New("audio: capture pipeline already running")
