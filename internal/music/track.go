// Package music implements the per-guild playback engine: track lookup, audio
// sources, the playback queue, the guild player state machine, transport
// controls and the registry of live players.
package music

import (
	"fmt"
	"time"
)

// Track describes one playable item. Values are immutable once queued.
type Track struct {
	Title        string
	SourceURL    string // canonical page link
	PlayableURL  string // direct media link, filled by ResolveStreamable
	Duration     time.Duration
	ThumbnailURL string
	Uploader     string
	RequestedBy  string // user ID
}

// FormatDuration renders a duration as m:ss or h:mm:ss. Zero renders as "live".
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "live"
	}
	total := int(d.Round(time.Second).Seconds())
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
