package backend

import (
	"flag"
	"strconv"
)

var (
	SeekToCLIArg int64 = -1

	FlagPlay       = flag.Bool("play", false, "resume or begin playback in the active player")
	FlagPause      = flag.Bool("pause", false, "pause playback in the active player")
	FlagPrevious   = flag.Bool("previous", false, "seek to previous track")
	FlagNext       = flag.Bool("next", false, "seek to next track")
	FlagOpenPlayer = flag.Bool("open-player", false, "bring the active player's UI to the front")
	FlagChooser    = flag.Bool("chooser", false, "open the system media player chooser")
	FlagReset      = flag.Bool("reset", false, "clear all remembered now-playing state")
	FlagStatus     = flag.Bool("status", false, "print the current now-playing state as JSON")
	FlagQuit       = flag.Bool("quit", false, "stop the running daemon")
	FlagVersion    = flag.Bool("version", false, "print app version and exit")
	FlagHelp       = flag.Bool("help", false, "print command line options and exit")
)

func init() {
	flag.Func("seek-to", "seeks to the given position in milliseconds in the current track", func(s string) error {
		v, err := strconv.ParseInt(s, 10, 64)
		SeekToCLIArg = v
		return err
	})
}

func HaveCommandLineOptions() bool {
	visitedAny := false
	flag.Visit(func(*flag.Flag) {
		visitedAny = true
	})
	return visitedAny
}
