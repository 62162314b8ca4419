package music

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a search query matches nothing.
	ErrNotFound = errors.New("no track matched the query")
	// ErrNotConnected is returned when a control targets a guild with no live player.
	ErrNotConnected = errors.New("not connected to voice in this guild")
	// ErrPermission is returned when the invoker is not in the player's voice channel.
	ErrPermission = errors.New("you must be in the same voice channel as the bot")
	// ErrNothingPlaying is returned by controls that need a current track.
	ErrNothingPlaying = errors.New("nothing is playing")
	// ErrTimedOut is returned by Queue.TakeOrTimeout when the wait elapses.
	ErrTimedOut = errors.New("timed out waiting for a track")
	// ErrTerminated is returned when operating on a player that has shut down.
	ErrTerminated = errors.New("player has shut down")
	// ErrPanelGone is returned by a Surface when the panel message no longer exists.
	ErrPanelGone = errors.New("panel message no longer exists")
)

// ResolutionError wraps a lookup service failure for a query or link.
type ResolutionError struct {
	Query string
	Err   error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving %q: %v", e.Query, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// SourceOpenError is returned when an audio stream cannot be started for a track.
type SourceOpenError struct {
	Track  Track
	Err    error
	Stderr string
}

func (e *SourceOpenError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("opening audio for %q: %v: %s", e.Track.Title, e.Err, e.Stderr)
	}
	return fmt.Sprintf("opening audio for %q: %v", e.Track.Title, e.Err)
}

func (e *SourceOpenError) Unwrap() error { return e.Err }
