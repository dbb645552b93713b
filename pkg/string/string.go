// Package string holds the trimming helpers request models use in Sanitize.
package string

import "strings"

// TrimStrings trims each target in place.
func TrimStrings(ss ...*string) {
	for _, s := range ss {
		*s = strings.TrimSpace(*s)
	}
}

// TrimSpacePtr trims an optional string. Nil stays nil.
func TrimSpacePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}
