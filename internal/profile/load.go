package profile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parse decodes, defaults and validates a profile document.
func Parse(data []byte) (*SiteProfile, error) {
	var p SiteProfile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: failed to decode: %v", ErrInvalidProfile, err)
	}
	p.applyDefaults()
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadFile reads one profile from disk.
func LoadFile(path string) (*SiteProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.source = path
	return p, nil
}

// LoadGlob loads every profile matching the patterns, sorted by name.
// Plain paths are accepted as patterns. Duplicate site names are rejected.
func LoadGlob(patterns ...string) ([]*SiteProfile, error) {
	seen := make(map[string]string)
	var profiles []*SiteProfile
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad profile pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no profiles match %q", pattern)
		}
		for _, path := range matches {
			if _, dup := seen[path]; dup {
				continue
			}
			p, err := LoadFile(path)
			if err != nil {
				return nil, err
			}
			for prev, name := range seen {
				if name == p.Name {
					return nil, fmt.Errorf("%w: site %q defined in both %s and %s", ErrInvalidProfile, p.Name, prev, path)
				}
			}
			seen[path] = p.Name
			profiles = append(profiles, p)
		}
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles, nil
}

// Select keeps the profiles whose names appear in names. An empty names
// list keeps everything. Unknown names are an error.
func Select(profiles []*SiteProfile, names []string) ([]*SiteProfile, error) {
	if len(names) == 0 {
		return profiles, nil
	}
	byName := make(map[string]*SiteProfile, len(profiles))
	for _, p := range profiles {
		byName[strings.ToLower(p.Name)] = p
	}
	var out []*SiteProfile
	var missing []string
	for _, n := range names {
		p, ok := byName[strings.ToLower(n)]
		if !ok {
			missing = append(missing, n)
			continue
		}
		out = append(out, p)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("unknown site(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// decodeStrict decodes a mapping node rejecting unknown keys. node.Decode
// does not inherit the outer decoder's KnownFields setting.
func decodeStrict(node *yaml.Node, out any) error {
	data, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	return nil
}

// UnmarshalYAML accepts either a mapping or the "selector@attr" shorthand.
func (c *Candidate) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		sel, attr := splitShorthand(node.Value)
		*c = Candidate{Selector: sel, Attr: attr}
		return nil
	}
	type plain Candidate
	return decodeStrict(node, (*plain)(c))
}

// splitShorthand splits "selector@attr" on the last '@' that sits outside
// brackets and quotes, so `a[href*="@"]@href` keeps its attribute selector.
func splitShorthand(v string) (sel, attr string) {
	at := -1
	depth := 0
	var quote rune
	for i, r := range v {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '[' || r == '(':
			depth++
		case r == ']' || r == ')':
			depth--
		case r == '@' && depth == 0:
			at = i
		}
	}
	if at < 0 {
		return strings.TrimSpace(v), ""
	}
	return strings.TrimSpace(v[:at]), strings.TrimSpace(v[at+1:])
}

// UnmarshalYAML accepts a bare candidate list as well as the full mapping.
func (f *FieldChain) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		*f = FieldChain{}
		return node.Decode(&f.Candidates)
	case yaml.ScalarNode:
		var c Candidate
		if err := node.Decode(&c); err != nil {
			return err
		}
		*f = FieldChain{Candidates: []Candidate{c}}
		return nil
	}
	type plain FieldChain
	return decodeStrict(node, (*plain)(f))
}

// UnmarshalYAML treats a scalar as a literal substring signature.
func (s *Signature) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*s = Signature{Text: node.Value}
		return nil
	}
	type plain Signature
	return decodeStrict(node, (*plain)(s))
}

// UnmarshalYAML treats a scalar as an unlabelled URL.
func (e *ListEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*e = ListEntry{URL: node.Value}
		return nil
	}
	type plain ListEntry
	return decodeStrict(node, (*plain)(e))
}

// ErrInvalidProfile marks decoding and validation failures.
var ErrInvalidProfile = errors.New("invalid site profile")
