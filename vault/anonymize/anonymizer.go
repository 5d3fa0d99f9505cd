package anonymize

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrInvalidInput is returned for text that is not valid UTF-8
var ErrInvalidInput = errors.New("input is not valid UTF-8")

// Stats counts what an anonymization pass did
type Stats struct {
	TotalPIIFound   int
	TotalAnonymized int
	ByKind          map[Kind]int
}

func (s *Stats) add(o Stats) {
	s.TotalPIIFound += o.TotalPIIFound
	s.TotalAnonymized += o.TotalAnonymized
	for k, n := range o.ByKind {
		if s.ByKind == nil {
			s.ByKind = make(map[Kind]int)
		}
		s.ByKind[k] += n
	}
}

// Output is the result of anonymizing a single string
type Output struct {
	Text  string
	Stats Stats
}

// Config controls the anonymizer
type Config struct {
	Detector DetectorConfig
	// Keep lists kinds that are detected and counted but left in place.
	Keep []Kind
}

// DefaultConfig detects and replaces every kind
func DefaultConfig() Config {
	return Config{Detector: DefaultDetectorConfig()}
}

// Anonymizer replaces detected PII with "[KIND]" placeholders
type Anonymizer struct {
	detector *Detector
	keep     map[Kind]bool
}

// New builds an Anonymizer
func New(cfg Config) *Anonymizer {
	a := &Anonymizer{
		detector: NewDetector(cfg.Detector),
		keep:     make(map[Kind]bool),
	}
	for _, k := range cfg.Keep {
		a.keep[k] = true
	}
	return a
}

// Detector exposes the underlying detector
func (a *Anonymizer) Detector() *Detector {
	return a.detector
}

// Anonymize rewrites text
func (a *Anonymizer) Anonymize(text string) (Output, error) {
	if !utf8.ValidString(text) {
		return Output{}, ErrInvalidInput
	}

	detections := a.detector.Detect(text)
	stats := Stats{ByKind: make(map[Kind]int)}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, d := range detections {
		stats.TotalPIIFound++
		stats.ByKind[d.Kind]++
		if a.keep[d.Kind] {
			continue
		}
		b.WriteString(text[last:d.Start])
		b.WriteString(placeholder(d.Kind))
		last = d.End
		stats.TotalAnonymized++
	}
	b.WriteString(text[last:])

	return Output{Text: b.String(), Stats: stats}, nil
}

// AnonymizeJSON walks a decoded JSON document (maps, slices, scalars) and
// anonymizes every string in it. The input is not modified.
func (a *Anonymizer) AnonymizeJSON(doc any) (any, Output, error) {
	var total Stats
	out, err := a.walk(doc, &total, "$")
	if err != nil {
		return nil, Output{}, err
	}
	return out, Output{Stats: total}, nil
}

func (a *Anonymizer) walk(v any, total *Stats, path string) (any, error) {
	switch val := v.(type) {
	case string:
		res, err := a.Anonymize(val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		total.add(res.Stats)
		return res.Text, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			res, err := a.walk(child, total, path+"."+k)
			if err != nil {
				return nil, err
			}
			out[k] = res
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			res, err := a.walk(child, total, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = res
		}
		return out, nil
	default:
		return v, nil
	}
}

func placeholder(k Kind) string {
	return "[" + strings.ToUpper(string(k)) + "]"
}
