package ipc

import "fmt"

const (
	PingPath       = "/ping"
	PlayPath       = "/transport/play"
	PausePath      = "/transport/pause"
	PreviousPath   = "/transport/previous"
	NextPath       = "/transport/next"
	SeekToPath     = "/transport/seek-to" // ?ms=<millis>
	OpenPlayerPath = "/player/open"
	ChooserPath    = "/player/chooser"
	ResetPath      = "/state/reset"
	StatusPath     = "/status"
	QuitPath       = "/quit"
)

type Response struct {
	Error string `json:"error"`
}

// Status is the aggregated now-playing state served to CLI invocations.
type Status struct {
	Title          string `json:"title"`
	Artist         string `json:"artist"`
	Album          string `json:"album"`
	ArtworkRef     string `json:"artworkRef"`
	DurationMillis int64  `json:"durationMillis"`
	PositionMillis int64  `json:"positionMillis"`
	PlaybackState  string `json:"playbackState"`
	Live           bool   `json:"live"`
	PlayerPackage  string `json:"playerPackage"`
}

func SeekToMillisPath(ms int64) string {
	return fmt.Sprintf("%s?ms=%d", SeekToPath, ms)
}
