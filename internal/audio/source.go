package audio

import (
	"errors"
	"net/url"
	"strings"
)

// normalizeSource canonicalizes a media locator so that relative and
// absolute forms of the same resource compare equal. Both sides of every
// source comparison go through this: a naive string comparison would
// reload "/media/7.mp3" when "https://host/media/7.mp3" is already
// playing, resetting the playback position for nothing.
//
// Normalization is limited to base resolution and fragment stripping.
// Anything more aggressive risks treating genuinely different resources
// as equal.
func normalizeSource(base *url.URL, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("audio: empty source url")
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	resolved := ref
	if base != nil {
		resolved = base.ResolveReference(ref)
	}
	resolved.Fragment = ""

	return resolved.String(), nil
}
