package settings

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/NERVsystems/osmxray/pkg/osm"
)

func ref(s string) *osm.Ref {
	r, err := osm.ParseRef(s)
	if err != nil {
		panic(err)
	}
	return &r
}

func TestEncodeDefaultsIsEmpty(t *testing.T) {
	if got := Encode(Defaults()); got != "" {
		t.Errorf("Encode(Defaults()) = %q, want empty", got)
	}
}

func TestEncodeOnlyNonDefaults(t *testing.T) {
	s := Defaults()
	s.Opacity = 75
	s.ShowNodes = false

	got := Encode(s)
	params := strings.Split(got, "&")

	if !contains(params, "o=75") {
		t.Errorf("expected o=75 in %q", got)
	}
	if !contains(params, "t=wr") {
		t.Errorf("expected t=wr in %q", got)
	}
	for _, p := range params {
		if strings.HasPrefix(p, "b=") {
			t.Errorf("default background must not be encoded, got %q", got)
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestRoundtrip(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Settings)
	}{
		{"defaults", func(*Settings) {}},
		{"background none", func(s *Settings) { s.Background = "none" }},
		{"background osmde", func(s *Settings) { s.Background = "osmde" }},
		{"opacity zero", func(s *Settings) { s.Opacity = 0 }},
		{"opacity full", func(s *Settings) { s.Opacity = 100 }},
		{"no boundaries", func(s *Settings) { s.ShowBoundaries = false }},
		{"no kinds", func(s *Settings) { s.ShowNodes, s.ShowWays, s.ShowRelations = false, false, false }},
		{"relations only", func(s *Settings) { s.ShowNodes, s.ShowWays = false, false }},
		{"filter key", func(s *Settings) { s.FilterKey = "highway" }},
		{"filter key value", func(s *Settings) { s.FilterKey, s.FilterValue = "name:en", "Main Street" }},
		{"filter with separators", func(s *Settings) { s.FilterKey, s.FilterValue = "a&b", "c=d#e%f" }},
		{"value only", func(s *Settings) { s.FilterValue = "yes" }},
		{"selected way", func(s *Settings) { s.Selected = ref("w7") }},
		{"selected relation", func(s *Settings) { s.Selected = ref("r18446744073709551615") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Defaults()
			tt.edit(&s)
			got := Decode(Encode(s))
			if diff := cmp.Diff(s, got); diff != "" {
				t.Errorf("roundtrip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeSkipsMalformedFields(t *testing.T) {
	tests := []struct {
		hash string
		want func(*Settings)
	}{
		{"#o=abc", func(*Settings) {}},
		{"#o=150", func(*Settings) {}},
		{"#o=-1", func(*Settings) {}},
		{"#b=satellite", func(*Settings) {}},
		{"#t=xyz", func(*Settings) {}},
		{"#s=q12", func(*Settings) {}},
		{"#s=w", func(*Settings) {}},
		{"#k=%zz", func(*Settings) {}},
		{"#o=abc&t=w", func(s *Settings) { s.ShowNodes, s.ShowRelations = false, false }},
		{"#unknown=1&o=20", func(s *Settings) { s.Opacity = 20 }},
		{"", func(*Settings) {}},
		{"#", func(*Settings) {}},
		{"#&&=&o", func(*Settings) {}},
		{"#l=", func(s *Settings) { s.ShowBoundaries = false }},
		{"#t=", func(s *Settings) { s.ShowNodes, s.ShowWays, s.ShowRelations = false, false, false }},
	}

	for _, tt := range tests {
		t.Run(tt.hash, func(t *testing.T) {
			want := Defaults()
			tt.want(&want)
			if diff := cmp.Diff(want, Decode(tt.hash)); diff != "" {
				t.Errorf("Decode(%q) mismatch (-want +got):\n%s", tt.hash, diff)
			}
		})
	}
}

func TestEncodePreservesPosition(t *testing.T) {
	s, extra := Parse("#p=14/52.51/13.38&o=20&x=1")
	if s.Opacity != 20 {
		t.Fatalf("expected opacity 20, got %d", s.Opacity)
	}

	s.Opacity = 30
	got := EncodeWith(s, extra)
	if got != "p=14/52.51/13.38&x=1&o=30" {
		t.Errorf("EncodeWith = %q", got)
	}

	pos, ok := MapPosition(extra)
	if !ok {
		t.Fatal("expected map position")
	}
	if diff := cmp.Diff(Position{Zoom: 14, Lat: 52.51, Lon: 13.38}, pos); diff != "" {
		t.Errorf("position mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePosition(t *testing.T) {
	valid := []string{"0/0/0", "14/52.5/13.4", "18.5/-33.9/151.2/45/60"}
	for _, v := range valid {
		if _, err := ParsePosition(v); err != nil {
			t.Errorf("ParsePosition(%q) unexpected error: %v", v, err)
		}
	}

	invalid := []string{"", "14/52.5", "a/b/c", "30/0/0", "10/91/0", "10/0/181"}
	for _, v := range invalid {
		if _, err := ParsePosition(v); err == nil {
			t.Errorf("ParsePosition(%q) expected error", v)
		}
	}
}

func TestPositionString(t *testing.T) {
	p := Position{Zoom: 14.123, Lat: 52.5162749, Lon: 13.3777041}
	if got := p.String(); got != "14.12/52.51627/13.3777" {
		t.Errorf("String() = %q", got)
	}

	if got := (Position{Zoom: 0, Lat: 10.26, Lon: -20.74}).String(); got != "0/10.3/-20.7" {
		t.Errorf("String() = %q", got)
	}
}

func TestDiff(t *testing.T) {
	a := Defaults()
	b := a
	b.Opacity = 10
	b.FilterValue = "x"
	b.Selected = ref("n1")

	want := []Field{FieldOpacity, FieldFilter, FieldSelected}
	if diff := cmp.Diff(want, Diff(a, b)); diff != "" {
		t.Errorf("Diff mismatch (-want +got):\n%s", diff)
	}

	c := b
	c.Selected = ref("n1")
	if fields := Diff(b, c); len(fields) != 0 {
		t.Errorf("equal refs behind different pointers reported as changed: %v", fields)
	}
}

func TestLayers(t *testing.T) {
	s := Defaults()
	s.ShowWays = false
	if diff := cmp.Diff([]string{"nodes", "relations"}, s.Layers()); diff != "" {
		t.Errorf("Layers mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarize(t *testing.T) {
	sum := Summarize("#zz=1&p=14/48.1/11.6&o=20")
	if sum.Settings.Opacity != 20 {
		t.Errorf("opacity = %d", sum.Settings.Opacity)
	}
	if sum.Position == nil || sum.Position.Lat != 48.1 {
		t.Errorf("position = %+v", sum.Position)
	}
	want := []Param{{Key: "zz", Value: "1"}, {Key: "p", Value: "14/48.1/11.6"}}
	if diff := cmp.Diff(want, sum.Params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
	if sum.Hash != "zz=1&p=14/48.1/11.6&o=20" {
		t.Errorf("hash = %q", sum.Hash)
	}

	if sum := Summarize("p=99/0/0"); sum.Position != nil {
		t.Errorf("out of range position accepted: %+v", sum.Position)
	}
}

func TestEncodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		hash    string
		want    string
		wantErr bool
	}{
		{"empty", "", "", "", false},
		{"partial", `{"show_relations": false, "filter_key": "shop"}`, "", "t=nw&k=shop", false},
		{"keeps extra params", `{"opacity": 0}`, "p=3/0/0&o=40", "p=3/0/0&o=0", false},
		{"unknown field", `{"opacity": 10, "zoom": 3}`, "", "", true},
		{"invalid background", `{"background": "bing"}`, "", "", true},
		{"malformed", `{"opacity": "high"}`, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeJSON([]byte(tt.data), tt.hash)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("hash = %q, want %q", got, tt.want)
			}
		})
	}
}
