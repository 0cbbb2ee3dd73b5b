// Package block recognises pages served instead of the catalog when a site
// refuses automated access.
package block

import (
	"strings"

	"github.com/go-scripts/harvest/internal/profile"
	"github.com/go-scripts/harvest/internal/render"
)

// Detector matches a profile's block signatures. The zero value never
// reports a block.
type Detector struct {
	signatures []profile.Signature
}

// New builds a Detector from loaded signatures.
func New(signatures []profile.Signature) Detector {
	return Detector{signatures: signatures}
}

// Detect returns true and the matching signature when text or title
// contains one. Substring matches are case-sensitive.
func (d Detector) Detect(text, title string) (bool, string) {
	for _, s := range d.signatures {
		if match(s, title) || (!s.TitleOnly && match(s, text)) {
			return true, s.String()
		}
	}
	return false, ""
}

// DetectSnapshot runs Detect on a captured page.
func (d Detector) DetectSnapshot(snap *render.Snapshot) (bool, string) {
	return d.Detect(snap.Text(), snap.Title)
}

func match(s profile.Signature, haystack string) bool {
	if haystack == "" {
		return false
	}
	if re := s.Regexp(); re != nil {
		return re.MatchString(haystack)
	}
	return s.Text != "" && strings.Contains(haystack, s.Text)
}
