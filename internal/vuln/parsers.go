package vuln

import (
	"errors"
	"fmt"
)

// ErrMissingField is wrapped by every MissingFieldError.
var ErrMissingField = errors.New("missing required field")

// MissingFieldError reports a scan entry without a required key.
type MissingFieldError struct {
	Entry string
	Key   string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s %q", e.Entry, ErrMissingField, e.Key)
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

// Parser turns Quay features into vulnerabilities lazily. It is not restartable:
// once Next returns false the parser is exhausted.
type Parser struct {
	features []Feature
	fi, vi   int
	current  Vulnerability
	err      error
}

func NewParser(features []Feature) *Parser {
	return &Parser{features: features}
}

// Next advances to the next vulnerability. It returns false when the features
// are exhausted or a malformed entry was found; check Err afterwards.
func (p *Parser) Next() bool {
	if p.err != nil {
		return false
	}
	for p.fi < len(p.features) {
		f := p.features[p.fi]
		if p.vi >= len(f.Vulnerabilities) {
			p.fi++
			p.vi = 0
			continue
		}

		v, err := p.build(f, p.fi, p.vi)
		p.vi++
		if err != nil {
			p.err = err
			return false
		}
		p.current = v
		return true
	}
	return false
}

func (p *Parser) Vulnerability() Vulnerability { return p.current }

func (p *Parser) Err() error { return p.err }

func (p *Parser) build(f Feature, fi, vi int) (Vulnerability, error) {
	entry := fmt.Sprintf("feature[%d]", fi)
	if f.Name == nil {
		return Vulnerability{}, &MissingFieldError{Entry: entry, Key: "Name"}
	}
	entry = fmt.Sprintf("feature[%d] %s", fi, *f.Name)
	if f.Version == nil {
		return Vulnerability{}, &MissingFieldError{Entry: entry, Key: "Version"}
	}

	raw := f.Vulnerabilities[vi]
	entry = fmt.Sprintf("%s vulnerability[%d]", entry, vi)
	fields := []struct {
		key string
		val *string
	}{
		{"FixedBy", raw.FixedBy},
		{"Link", raw.Link},
		{"Name", raw.Name},
		{"Description", raw.Description},
		{"Severity", raw.Severity},
	}
	for _, field := range fields {
		if field.val == nil {
			return Vulnerability{}, &MissingFieldError{Entry: entry, Key: field.key}
		}
	}

	return NewVulnerability(
		*f.Name,
		*f.Version,
		FixedIn(*raw.FixedBy),
		*raw.Link,
		*raw.Name,
		*raw.Severity,
		*raw.Description,
	), nil
}

type sliceIterator struct {
	vulns []Vulnerability
	pos   int
}

// Iter returns an Iterator over vulns.
func Iter(vulns ...Vulnerability) Iterator {
	return &sliceIterator{vulns: vulns, pos: -1}
}

func (s *sliceIterator) Next() bool {
	if s.pos+1 >= len(s.vulns) {
		s.pos = len(s.vulns)
		return false
	}
	s.pos++
	return true
}

func (s *sliceIterator) Vulnerability() Vulnerability { return s.vulns[s.pos] }

func (s *sliceIterator) Err() error { return nil }

// Collect drains it into a slice.
func Collect(it Iterator) ([]Vulnerability, error) {
	var vulns []Vulnerability
	for it.Next() {
		vulns = append(vulns, it.Vulnerability())
	}
	return vulns, it.Err()
}
