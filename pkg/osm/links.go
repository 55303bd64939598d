package osm

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	taginfoBaseURL = "https://taginfo.openstreetmap.org/"
	wikiBaseURL    = "https://wiki.openstreetmap.org/wiki/"
)

// Link is a named external link.
type Link struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

var (
	webURLPattern    = regexp.MustCompile(`^https?://`)
	wikidataPattern  = regexp.MustCompile(`^Q[0-9]+$`)
	wikipediaPattern = regexp.MustCompile(`^[a-z-]{2,8}:`)
	digitsPattern    = regexp.MustCompile(`^[0-9]+$`)
	speciesPattern   = regexp.MustCompile(`^[a-zA-Z -]+$`)
)

// ValueLink returns an external link for a tag value if the tag is one of
// the known linkable tags. The boolean is false otherwise.
func ValueLink(key, value string) (Link, bool) {
	switch {
	case (key == "website" || key == "url" || key == "image") && webURLPattern.MatchString(value):
		return Link{Label: "web", URL: value}, true
	case strings.HasSuffix(key, "wikidata") && wikidataPattern.MatchString(value):
		return Link{Label: "Wikidata", URL: "https://wikidata.org/wiki/" + value}, true
	case key == "wikipedia" && wikipediaPattern.MatchString(value):
		// Only the segment after the language is linked; a further
		// namespace or section part is dropped.
		parts := strings.Split(value, ":")
		return Link{Label: "Wikipedia", URL: "https://" + parts[0] + ".wikipedia.org/wiki/" + parts[1]}, true
	case key == "mapillary" && digitsPattern.MatchString(value):
		return Link{Label: "Mapillary", URL: "https://www.mapillary.com/app/?pKey=" + value}, true
	case key == "ref:bag" && digitsPattern.MatchString(value):
		return Link{Label: "BAG", URL: "https://bagviewer.kadaster.nl/lvbag/bag-viewer/index.html#?searchQuery=" + padBAG(value)}, true
	case key == "species" && speciesPattern.MatchString(value):
		return Link{Label: "Wikispecies", URL: "https://species.wikimedia.org/wiki/" + value}, true
	}
	return Link{}, false
}

// BAG identifiers are always shown with 16 digits.
func padBAG(v string) string {
	if len(v) >= 16 {
		return v[len(v)-16:]
	}
	return strings.Repeat("0", 16-len(v)) + v
}

// TagLinks are the documentation links offered for one tag.
type TagLinks struct {
	TaginfoKey string `json:"taginfo_key"`
	TaginfoTag string `json:"taginfo_tag"`
	WikiKey    string `json:"wiki_key"`
	WikiTag    string `json:"wiki_tag"`
}

// LinksForTag builds taginfo and wiki links for key and key=value.
func LinksForTag(key, value string) TagLinks {
	tag := key + "=" + value
	return TagLinks{
		TaginfoKey: taginfoBaseURL + "keys/" + url.PathEscape(key),
		TaginfoTag: taginfoBaseURL + "tags/" + url.PathEscape(tag),
		WikiKey:    wikiBaseURL + "Key:" + url.PathEscape(key),
		WikiTag:    wikiBaseURL + "Tag:" + url.PathEscape(tag),
	}
}
