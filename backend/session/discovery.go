package session

import (
	"sync"
)

// Discovery consumes the host notification feed and selects the single most
// recently posted record that carries a session token and passes the source
// filter. The selection is published as a replayable property; duplicate
// selections (same package and token) are suppressed so downstream
// controller resolution isn't needlessly restarted.
type Discovery struct {
	mu       sync.Mutex
	filter   SourceFilter
	lastSnap []NotificationRecord

	selected *Property[*NotificationRecord]
}

func sameSelection(a, b *NotificationRecord) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.PackageID == b.PackageID && a.Token == b.Token
}

// NewDiscovery creates a Discovery subscribed to src. filter may be nil
// (no filtering).
func NewDiscovery(src NotificationSource, filter SourceFilter) *Discovery {
	d := &Discovery{
		filter:   filter,
		selected: NewProperty(sameSelection),
	}
	if src != nil {
		src.OnNotificationsChanged(d.Update)
		d.Update(src.Notifications())
	}
	return d
}

// Selected is the discovery output: the winning record, or nil when no
// record qualifies.
func (d *Discovery) Selected() *Property[*NotificationRecord] {
	return d.selected
}

// Update replaces the current notification snapshot and re-runs selection.
func (d *Discovery) Update(records []NotificationRecord) {
	d.mu.Lock()
	d.lastSnap = records
	filter := d.filter
	d.mu.Unlock()
	d.selected.Publish(selectRecord(records, filter))
}

// SetFilter swaps the source filter and re-runs selection against the last
// seen snapshot. Used by the live config reload path.
func (d *Discovery) SetFilter(filter SourceFilter) {
	d.mu.Lock()
	d.filter = filter
	records := d.lastSnap
	d.mu.Unlock()
	d.selected.Publish(selectRecord(records, filter))
}

// selectRecord picks the qualifying record with the maximum PostTime.
// Ties on PostTime keep the first-seen record, so selection is
// deterministic for a given input.
func selectRecord(records []NotificationRecord, filter SourceFilter) *NotificationRecord {
	var best *NotificationRecord
	for i := range records {
		r := &records[i]
		if !r.HasToken() {
			continue
		}
		if filter != nil && filter.Enabled() && !filter.Allows(r.PackageID) {
			continue
		}
		if best == nil || r.PostTime.After(best.PostTime) {
			best = r
		}
	}
	if best == nil {
		return nil
	}
	rec := *best
	return &rec
}
