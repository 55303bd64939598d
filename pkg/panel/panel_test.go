package panel

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/NERVsystems/osmxray/pkg/osm"
	"github.com/NERVsystems/osmxray/pkg/selection"
)

var (
	node3 = osm.GeoObject{Kind: osm.Node, ID: 3, Attributes: map[string]string{"amenity": "bench"}}
	way7  = osm.GeoObject{Kind: osm.Way, ID: 7, Attributes: map[string]string{
		"name":     "Main Street",
		"highway":  "residential",
		"way_id":   "7",
		"wikidata": "Q1",
	}}
)

func twoObjects() selection.Sets {
	return selection.Sets{Nodes: []osm.GeoObject{node3}, Ways: []osm.GeoObject{way7}}
}

func TestRenderStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  selection.Status
		want    Status
		message string
		count   string
	}{
		{
			name:   "empty",
			status: selection.Status{State: selection.Idle{}, Enabled: true},
			want:   StatusEmpty,
		},
		{
			name:   "empty zoomed out",
			status: selection.Status{State: selection.Idle{}, Enabled: false},
			want:   StatusEmpty,
		},
		{
			name:    "hovering",
			status:  selection.Status{State: selection.Hovering{Objects: twoObjects(), Current: 1}, Enabled: true},
			want:    StatusUnlocked,
			message: MessageUnlocked,
			count:   "Selected: 2",
		},
		{
			name:    "locked",
			status:  selection.Status{State: selection.Locked{Objects: twoObjects(), Current: 2}, Enabled: true},
			want:    StatusLocked,
			message: MessageLocked,
			count:   "Selected: 2",
		},
		{
			name:    "zoomed out with objects",
			status:  selection.Status{State: selection.Hovering{Objects: twoObjects(), Current: 1}, Enabled: false},
			want:    StatusZoomIn,
			message: MessageZoomIn,
			count:   "Selected: 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Render(tt.status)
			if v.Status != tt.want {
				t.Errorf("Status = %q, want %q", v.Status, tt.want)
			}
			if v.Message != tt.message {
				t.Errorf("Message = %q, want %q", v.Message, tt.message)
			}
			if v.CountText != tt.count {
				t.Errorf("CountText = %q, want %q", v.CountText, tt.count)
			}
			if v.ZoomNotice == tt.status.Enabled {
				t.Errorf("ZoomNotice = %v with Enabled = %v", v.ZoomNotice, tt.status.Enabled)
			}
		})
	}
}

func TestRenderEntries(t *testing.T) {
	v := Render(selection.Status{State: selection.Hovering{Objects: twoObjects(), Current: 2}, Enabled: true})

	if len(v.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(v.Entries))
	}

	first, second := v.Entries[0], v.Entries[1]
	if first.Index != 1 || first.ShortID != "n3" || first.Current {
		t.Errorf("unexpected first entry %+v", first)
	}
	if second.Index != 2 || second.ShortID != "w7" || !second.Current {
		t.Errorf("unexpected second entry %+v", second)
	}
	if second.Title != "Way" || second.URL != "https://www.openstreetmap.org/way/7" {
		t.Errorf("unexpected title or URL %q %q", second.Title, second.URL)
	}
	if !v.HasPrev || v.HasNext {
		t.Errorf("HasPrev=%v HasNext=%v at last entry", v.HasPrev, v.HasNext)
	}
}

func TestTagsSortedAndFiltered(t *testing.T) {
	tags := Tags(way7)

	var keys []string
	for _, tag := range tags {
		keys = append(keys, tag.Key)
	}
	if diff := cmp.Diff([]string{"highway", "name", "wikidata"}, keys); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}

	wd := tags[2]
	if wd.ValueLink == nil || wd.ValueLink.URL != "https://wikidata.org/wiki/Q1" {
		t.Errorf("expected wikidata link, got %+v", wd.ValueLink)
	}
	if tags[0].ValueLink != nil {
		t.Errorf("highway should have no value link, got %+v", tags[0].ValueLink)
	}
}

func TestRenderIsPure(t *testing.T) {
	st := selection.Status{State: selection.Locked{Objects: twoObjects(), Current: 1}, Enabled: true}
	a := Render(st)
	b := Render(st)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("Render is not deterministic (-a +b):\n%s", diff)
	}
}
