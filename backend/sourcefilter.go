package backend

import (
	"strings"

	"github.com/tayokelay/nowplaying/backend/session"
	"github.com/tayokelay/nowplaying/sharedutil"
)

// AllowListFilter restricts discovery to the music apps named in the
// config's allow-list. Package IDs and configured names are compared in
// normalized form. An immutable snapshot of the config; build a new one on
// config reload.
type AllowListFilter struct {
	enabled bool
	allowed map[string]struct{}
}

var _ session.SourceFilter = (*AllowListFilter)(nil)

func NewAllowListFilter(cfg SourceFilterConfig) *AllowListFilter {
	keys := sharedutil.FilterMapSlice(cfg.AllowedSources, func(s string) (string, bool) {
		k := sharedutil.NormalizeAppKey(s)
		return k, k != ""
	})
	return &AllowListFilter{
		enabled: cfg.FilterSources,
		allowed: sharedutil.ToSet(keys),
	}
}

func (f *AllowListFilter) Enabled() bool {
	return f.enabled
}

func (f *AllowListFilter) Allows(packageID string) bool {
	key := sharedutil.NormalizeAppKey(packageID)
	if _, ok := f.allowed[key]; ok {
		return true
	}
	// players may expose instance-suffixed IDs (vlc.instance4242)
	if i := strings.LastIndex(key, ".instance"); i > 0 {
		_, ok := f.allowed[key[:i]]
		return ok
	}
	return false
}
