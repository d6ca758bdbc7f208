// Package domain contains entities without logic, just meta-data.
package domain

// VideoData is opaque song metadata supplied by the client. The server
// never validates it; a bad URL only fails in the client's player.
type VideoData struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Song is a queue entry. Immutable once enqueued.
type Song struct {
	SingerID SessionID `json:"singerId"`
	Video    VideoData `json:"videoData"`
}

// PlayerStatus is the stored playback state of a room.
type PlayerStatus int

const (
	StatusNone PlayerStatus = iota
	StatusUnstarted
	StatusPlaying
	// StatusEnded is a wire-level control code only, never stored on a room.
	StatusEnded
)

func (s PlayerStatus) String() string {
	switch s {
	case StatusNone:
		return "NONE"
	case StatusUnstarted:
		return "UNSTARTED"
	case StatusPlaying:
		return "PLAYING"
	case StatusEnded:
		return "ENDED"
	}
	return "UNKNOWN"
}
