package providers

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// Field names a NormalizedResult field filled from a provider payload
type Field string

const (
	FieldTitle       Field = "title"
	FieldArtist      Field = "artist"
	FieldAlbum       Field = "album"
	FieldExternalURL Field = "externalUrl"
	FieldLyrics      Field = "lyrics"
)

// Mapping lists, per field, the gjson paths tried in order.
// The first path resolving to a non-empty string wins. A path resolving to an
// array of strings (e.g. "artists.#.name") is joined with ", ".
type Mapping map[Field][]string

// Normalize flattens a provider payload into a NormalizedResult using mapping.
// Fields with no matching path stay nil.
func Normalize(provider string, raw json.RawMessage, mapping Mapping) *NormalizedResult {
	result := &NormalizedResult{
		Provider: provider,
		Raw:      raw,
	}

	result.Title = lookup(raw, mapping[FieldTitle])
	result.Artist = lookup(raw, mapping[FieldArtist])
	result.Album = lookup(raw, mapping[FieldAlbum])
	result.ExternalURL = lookup(raw, mapping[FieldExternalURL])
	result.Lyrics = lookup(raw, mapping[FieldLyrics])

	return result
}

// lookup returns the first non-empty string found at paths
func lookup(raw json.RawMessage, paths []string) *string {
	for _, path := range paths {
		value := gjson.GetBytes(raw, path)
		if s, ok := stringValue(value); ok {
			return &s
		}
	}
	return nil
}

func stringValue(value gjson.Result) (string, bool) {
	switch {
	case value.Type == gjson.String:
		s := strings.TrimSpace(value.Str)
		return s, s != ""
	case value.IsArray():
		var parts []string
		for _, item := range value.Array() {
			if item.Type != gjson.String {
				continue
			}
			if s := strings.TrimSpace(item.Str); s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return "", false
		}
		return strings.Join(parts, ", "), true
	default:
		return "", false
	}
}

// HasTitleOrArtist reports whether a result identifies anything at all
func (r *NormalizedResult) HasTitleOrArtist() bool {
	return r != nil && (r.Title != nil || r.Artist != nil)
}
