package models

import (
	"regexp"
	"strings"
)

// aspectTokens are the recognized trailing aspect-ratio suffixes.
var aspectTokens = map[string]bool{
	"1x1":  true,
	"4x5":  true,
	"9x16": true,
	"16x9": true,
}

var versionToken = regexp.MustCompile(`^v\d+$`)

// ConceptKey strips a trailing aspect-ratio token and a trailing version
// token from an asset name, e.g. "Product_v1_9x16" -> "Product". Names
// without recognized suffixes are returned unchanged.
func ConceptKey(name string) string {
	parts := strings.Split(name, "_")
	if len(parts) > 1 && aspectTokens[parts[len(parts)-1]] {
		parts = parts[:len(parts)-1]
	}
	if len(parts) > 1 && versionToken.MatchString(parts[len(parts)-1]) {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, "_")
}

// GroupByConcept groups video assets by concept key. Non-video assets are
// excluded. Grouping is computed from the supplied list on every call and
// never cached, so renaming an asset changes its membership immediately.
func GroupByConcept(assets []*VideoAsset) map[string][]*VideoAsset {
	groups := make(map[string][]*VideoAsset)
	for _, a := range assets {
		if !a.IsVideo() {
			continue
		}
		key := ConceptKey(a.Name)
		groups[key] = append(groups[key], a)
	}
	return groups
}

// RelatedVideos returns every video asset sharing a concept with name,
// in the order they appear in assets. The target asset itself is included
// when present in the list.
func RelatedVideos(assets []*VideoAsset, name string) []*VideoAsset {
	key := ConceptKey(name)
	var related []*VideoAsset
	for _, a := range assets {
		if a.IsVideo() && ConceptKey(a.Name) == key {
			related = append(related, a)
		}
	}
	return related
}
