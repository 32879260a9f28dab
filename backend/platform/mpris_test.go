package platform

import (
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/tayokelay/nowplaying/backend/session"
)

func TestMetadataSnapshot(t *testing.T) {
	m := map[string]dbus.Variant{
		"xesam:title":  dbus.MakeVariant("Song"),
		"xesam:artist": dbus.MakeVariant([]string{"Band", "Guest"}),
		"xesam:album":  dbus.MakeVariant("Album"),
		"mpris:artUrl": dbus.MakeVariant("file:///art.jpg"),
	}
	snap := metadataSnapshot(m)
	if snap.Title != "Song" {
		t.Errorf("title = %q", snap.Title)
	}
	if snap.Artist != "Band, Guest" {
		t.Errorf("artist = %q, want joined artists", snap.Artist)
	}
	if snap.AlbumTitle != "Album" {
		t.Errorf("album = %q", snap.AlbumTitle)
	}
	if snap.ArtworkRef != "file:///art.jpg" {
		t.Errorf("artworkRef = %q", snap.ArtworkRef)
	}
}

func TestMetadataSnapshot_StringArtist(t *testing.T) {
	m := map[string]dbus.Variant{
		"xesam:artist": dbus.MakeVariant("Solo"),
	}
	if got := metadataSnapshot(m).Artist; got != "Solo" {
		t.Errorf("artist = %q, want Solo", got)
	}
}

func TestMetadataSnapshot_MissingFields(t *testing.T) {
	snap := metadataSnapshot(map[string]dbus.Variant{})
	if *snap != (session.MediaMetadataSnapshot{}) {
		t.Errorf("empty metadata must map to zero snapshot, got %+v", snap)
	}
}

func TestDurationMillis(t *testing.T) {
	cases := []struct {
		val  any
		want int64
	}{
		{int64(215_000_000), 215_000},
		{uint64(1_000_000), 1000},
		{int32(500_000), 500},
		{float64(2_000_000), 2000},
		{"bogus", 0},
	}
	for _, c := range cases {
		m := map[string]dbus.Variant{"mpris:length": dbus.MakeVariant(c.val)}
		if got := durationMillis(m); got != c.want {
			t.Errorf("durationMillis(%v) = %d, want %d", c.val, got, c.want)
		}
	}
	if got := durationMillis(map[string]dbus.Variant{}); got != 0 {
		t.Errorf("durationMillis(missing) = %d, want 0", got)
	}
}

func TestTimelineSnapshot(t *testing.T) {
	tl := timelineSnapshot(map[string]dbus.Variant{
		"xesam:title": dbus.MakeVariant("Song"),
	})
	if len(tl.Queue) != 1 || tl.Queue[0] != "Song" || tl.ActiveIndex != 0 {
		t.Errorf("timeline = %+v, want single-entry queue", tl)
	}

	empty := timelineSnapshot(map[string]dbus.Variant{})
	if len(empty.Queue) != 0 || empty.ActiveIndex != -1 {
		t.Errorf("empty timeline = %+v, want no active entry", empty)
	}
}

func TestTrackObjectPath(t *testing.T) {
	m := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(dbus.ObjectPath("/org/mpris/Track/1")),
	}
	p, ok := trackObjectPath(m)
	if !ok || p != "/org/mpris/Track/1" {
		t.Errorf("trackObjectPath = (%v, %v)", p, ok)
	}
	if _, ok := trackObjectPath(map[string]dbus.Variant{}); ok {
		t.Error("missing trackid must not resolve")
	}
}

func newTestSource() *MPRISSource {
	return &MPRISSource{
		records: make(map[string]session.NotificationRecord),
		owners:  make(map[string]string),
	}
}

func ownerChanged(name, oldOwner, newOwner string) *dbus.Signal {
	return &dbus.Signal{
		Name: nameOwnerChangedSignal,
		Body: []any{name, oldOwner, newOwner},
	}
}

func TestMPRISSource_NameAppearsAndDisappears(t *testing.T) {
	s := newTestSource()

	if !s.handleSignal(ownerChanged("org.mpris.MediaPlayer2.vlc", "", ":1.50")) {
		t.Fatal("new player name must change the record set")
	}
	recs := s.Notifications()
	if len(recs) != 1 {
		t.Fatalf("records = %v, want 1", recs)
	}
	if recs[0].PackageID != "vlc" || recs[0].Token != "org.mpris.MediaPlayer2.vlc" {
		t.Errorf("record = %+v", recs[0])
	}

	if !s.handleSignal(ownerChanged("org.mpris.MediaPlayer2.vlc", ":1.50", "")) {
		t.Fatal("released name must change the record set")
	}
	if got := s.Notifications(); len(got) != 0 {
		t.Errorf("records after release = %v, want none", got)
	}
}

func TestMPRISSource_IgnoresNonPlayerNames(t *testing.T) {
	s := newTestSource()
	if s.handleSignal(ownerChanged("org.freedesktop.Notifications", "", ":1.9")) {
		t.Error("non-MPRIS names must be ignored")
	}
}

func TestMPRISSource_PropertiesChangedBumpsPostTime(t *testing.T) {
	s := newTestSource()
	old := time.Now().Add(-time.Hour)
	s.records["org.mpris.MediaPlayer2.vlc"] = newPlayerRecord("org.mpris.MediaPlayer2.vlc", old)
	s.owners[":1.50"] = "org.mpris.MediaPlayer2.vlc"

	changed := s.handleSignal(&dbus.Signal{
		Name:   propertiesChangedSignal,
		Sender: ":1.50",
	})
	if !changed {
		t.Fatal("property push from known player must change the record set")
	}
	if got := s.Notifications()[0].PostTime; !got.After(old) {
		t.Errorf("post time not bumped: %v", got)
	}

	if s.handleSignal(&dbus.Signal{Name: propertiesChangedSignal, Sender: ":1.99"}) {
		t.Error("property push from unknown sender must be ignored")
	}
}
