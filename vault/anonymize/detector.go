// Package anonymize finds personally identifiable information in free text
// and JSON documents and replaces it with typed placeholders.
package anonymize

import (
	"regexp"
	"sort"
)

// Kind classifies a PII match
type Kind string

const (
	KindEmail   Kind = "email"
	KindSSN     Kind = "ssn"
	KindPhone   Kind = "phone"
	KindIP      Kind = "ip_address"
	KindAddress Kind = "address"
)

// patterns are tried in this order; on overlap the earliest start wins and
// ties go to the pattern listed first.
var patterns = []struct {
	kind Kind
	re   *regexp.Regexp
}{
	{KindEmail, regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)},
	{KindSSN, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{KindPhone, regexp.MustCompile(`\b\d{3}-\d{3,4}-\d{4}\b`)},
	{KindIP, regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
	{KindAddress, regexp.MustCompile(`\b\d{1,5} [A-Z][a-z]+ (?:St|Ave|Rd|Blvd|Ln|Dr)\b`)},
}

// Detection is a single PII match within a string
type Detection struct {
	Kind  Kind
	Start int
	End   int
	Value string
}

// DetectorConfig selects which kinds are reported. Empty means all.
type DetectorConfig struct {
	Kinds []Kind
}

// DefaultDetectorConfig enables every kind
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{}
}

// Detector scans text for PII
type Detector struct {
	enabled map[Kind]bool
}

// NewDetector builds a detector for cfg
func NewDetector(cfg DetectorConfig) *Detector {
	d := &Detector{enabled: make(map[Kind]bool)}
	for _, k := range cfg.Kinds {
		d.enabled[k] = true
	}
	return d
}

func (d *Detector) wants(k Kind) bool {
	return len(d.enabled) == 0 || d.enabled[k]
}

// Detect returns non-overlapping matches ordered by position
func (d *Detector) Detect(text string) []Detection {
	var found []Detection
	for _, p := range patterns {
		if !d.wants(p.kind) {
			continue
		}
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			found = append(found, Detection{
				Kind:  p.kind,
				Start: loc[0],
				End:   loc[1],
				Value: text[loc[0]:loc[1]],
			})
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Start < found[j].Start
	})

	out := found[:0]
	end := -1
	for _, m := range found {
		if m.Start < end {
			continue
		}
		out = append(out, m)
		end = m.End
	}
	return out
}
