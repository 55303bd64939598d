package tools

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"

	"github.com/NERVsystems/osmxray/pkg/core"
	"github.com/NERVsystems/osmxray/pkg/osm"
	"github.com/NERVsystems/osmxray/pkg/settings"
)

func TestHandleSettingsEncode(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want string
		code core.ErrorCode
	}{
		{
			name: "defaults",
			args: map[string]any{"settings": map[string]any{}},
			want: "",
		},
		{
			name: "partial settings keep defaults",
			args: map[string]any{"settings": map[string]any{"opacity": 80, "show_nodes": false}},
			want: "o=80&t=wr",
		},
		{
			name: "filter is escaped",
			args: map[string]any{"settings": map[string]any{"filter_key": "name", "filter_value": "Café & Bar"}},
			want: "k=name&v=Caf%C3%A9+%26+Bar",
		},
		{
			name: "position carried over",
			args: map[string]any{
				"settings": map[string]any{"background": "none", "selected": map[string]any{"kind": "way", "id": 7}},
				"hash":     "p=16/52.5/13.4&o=10",
			},
			want: "p=16/52.5/13.4&b=none&s=w7",
		},
		{
			name: "unknown background",
			args: map[string]any{"settings": map[string]any{"background": "satellite"}},
			code: core.ErrInvalidParameter,
		},
		{
			name: "opacity out of range",
			args: map[string]any{"settings": map[string]any{"opacity": 150}},
			code: core.ErrInvalidParameter,
		},
		{
			name: "unknown field",
			args: map[string]any{"settings": map[string]any{"colour": "red"}},
			code: core.ErrInvalidParameter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := HandleSettingsEncode(context.Background(), request("settings_encode", tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.code != "" {
				AssertErrorCode(t, result, tt.code)
				return
			}
			AssertSuccessResult(t, result, "encode failed")
			var out map[string]string
			if err := ParseResultJSON(result, &out); err != nil {
				t.Fatal(err)
			}
			if out["hash"] != tt.want {
				t.Errorf("hash = %q, want %q", out["hash"], tt.want)
			}
		})
	}
}

func TestHandleSettingsDecode(t *testing.T) {
	result, err := HandleSettingsDecode(context.Background(),
		request("settings_decode", map[string]any{"hash": "#map=x&o=abc&t=nr&p=12/52.52/13.405&s=n99"}))
	if err != nil {
		t.Fatal(err)
	}
	AssertSuccessResult(t, result, "decode failed")

	var out settings.Summary
	if err := ParseResultJSON(result, &out); err != nil {
		t.Fatal(err)
	}

	want := settings.Defaults()
	want.ShowWays = false
	want.Selected = &osm.Ref{Kind: osm.Node, ID: 99}
	if diff := cmp.Diff(want, out.Settings); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
	if out.Position == nil || out.Position.Zoom != 12 {
		t.Errorf("position = %+v", out.Position)
	}
	if out.Hash != "map=x&p=12/52.52/13.405&t=nr&s=n99" {
		t.Errorf("canonical hash = %q", out.Hash)
	}
}

func TestHandleObjectFetch(t *testing.T) {
	bbox := orb.Bound{Min: orb.Point{13.37, 52.51}, Max: orb.Point{13.40, 52.52}}
	obj := osm.GeoObject{Kind: osm.Way, ID: 7, Attributes: map[string]string{"name": "Unter den Linden", "way_id": "7"}, BBox: &bbox}
	r := newTestRegistry(fakeFetcher{obj.Ref(): obj})

	result, err := r.HandleObjectFetch(context.Background(), request("object_fetch", map[string]any{"ref": "w7"}))
	if err != nil {
		t.Fatal(err)
	}
	AssertSuccessResult(t, result, "fetch failed")

	var out ObjectFetchOutput
	if err := ParseResultJSON(result, &out); err != nil {
		t.Fatal(err)
	}
	if out.Entry.ShortID != "w7" || out.Entry.URL != "https://www.openstreetmap.org/way/7" {
		t.Errorf("entry = %+v", out.Entry)
	}
	if len(out.Entry.Tags) != 1 {
		t.Errorf("expected way_id hidden from tags, got %+v", out.Entry.Tags)
	}

	tests := []struct {
		name string
		r    *Registry
		ref  any
		code core.ErrorCode
	}{
		{"missing ref", r, "", core.ErrMissingParameter},
		{"bad ref", r, "x7", core.ErrInvalidRef},
		{"unknown object", r, "w8", core.ErrNoResults},
		{"no feature server", newTestRegistry(nil), "w7", core.ErrServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.r.HandleObjectFetch(context.Background(), request("object_fetch", map[string]any{"ref": tt.ref}))
			if err != nil {
				t.Fatal(err)
			}
			AssertErrorCode(t, result, tt.code)
		})
	}
}
