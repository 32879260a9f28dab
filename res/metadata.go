package res

const (
	AppName       = "nowplaying"
	DisplayName   = "Now Playing"
	AppVersion    = "0.1.0"
	AppVersionTag = "v" + AppVersion
	ConfigFile    = "config.toml"
	GithubURL     = "https://github.com/tayokelay/nowplaying"
	Copyright     = "Copyright © 2026 tayokelay and contributors"
)
