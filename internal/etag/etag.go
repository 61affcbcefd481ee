// Package etag converts row-version fingerprints to and from HTTP entity tags.
package etag

import (
	"encoding/base64"
	"strings"
)

const weakPrefix = "W/"

// FromRowVersion renders rv as a quoted base64 entity tag, W/ prefixed when weak.
func FromRowVersion(rv []byte, weak bool) string {
	tag := `"` + base64.StdEncoding.EncodeToString(rv) + `"`
	if weak {
		return weakPrefix + tag
	}
	return tag
}

// ParseIfMatch extracts the row version from an If-Match value produced by
// FromRowVersion. ok is false for empty, unquoted or non-base64 input.
func ParseIfMatch(header string) (rv []byte, weak bool, ok bool) {
	value := strings.TrimSpace(header)
	if value == "" {
		return nil, false, false
	}

	if rest, found := strings.CutPrefix(value, weakPrefix); found {
		weak = true
		value = rest
	}

	if len(value) < 2 || value[0] != '"' || value[len(value)-1] != '"' {
		return nil, false, false
	}

	decoded, err := base64.StdEncoding.DecodeString(value[1 : len(value)-1])
	if err != nil || len(decoded) == 0 {
		return nil, false, false
	}
	return decoded, weak, true
}
