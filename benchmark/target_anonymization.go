package benchmark

import (
	"context"
	"fmt"

	"github.com/tclemos/vault-bench/vault/anonymize"
)

const defaultAnonymizationIterations = 10

// AnonymizationMode selects what an anonymization trial does
type AnonymizationMode string

const (
	// ModeAnonymize detects and replaces PII in free-text records
	ModeAnonymize AnonymizationMode = "anonymize"
	// ModeDetect only detects PII in free-text records
	ModeDetect AnonymizationMode = "detect"
	// ModeJSON anonymizes every string inside nested JSON documents
	ModeJSON AnonymizationMode = "json"
)

// AnonymizationTarget processes a batch of synthetic records per trial
type AnonymizationTarget struct {
	BaseTarget
	mode    AnonymizationMode
	records int

	anon  *anonymize.Anonymizer
	texts []string
	docs  []map[string]any
}

// NewAnonymizationTarget builds a target processing records per trial
func NewAnonymizationTarget(id, name string, mode AnonymizationMode, records int) *AnonymizationTarget {
	desc := map[AnonymizationMode]string{
		ModeAnonymize: "PII detection and anonymization of %d text records",
		ModeDetect:    "PII detection over %d text records",
		ModeJSON:      "PII anonymization of %d nested JSON documents",
	}[mode]
	return &AnonymizationTarget{
		BaseTarget: BaseTarget{
			TargetID:          id,
			TargetName:        name,
			TargetDescription: fmt.Sprintf(desc, records),
			Iterations:        defaultAnonymizationIterations,
		},
		mode:    mode,
		records: records,
	}
}

// Setup generates the record batch
func (t *AnonymizationTarget) Setup(context.Context) error {
	if t.anon != nil {
		return nil
	}
	switch t.mode {
	case ModeAnonymize, ModeDetect:
		t.texts = generateTextRecords(t.records)
	case ModeJSON:
		t.docs = generateJSONRecords(t.records)
	default:
		return fmt.Errorf("unknown anonymization mode %q", t.mode)
	}
	t.anon = anonymize.New(anonymize.DefaultConfig())
	return nil
}

// Run implements Target
func (t *AnonymizationTarget) Run(ctx context.Context) (*Result, error) {
	if err := t.Setup(ctx); err != nil {
		return nil, err
	}

	var found, anonymized int
	samples, err := Measure(t.Iterations, func(int) error {
		found, anonymized = 0, 0
		return ctx.Err()
	}, func(int) error {
		return t.processBatch(&found, &anonymized)
	})
	if err != nil {
		return nil, err
	}

	s, err := ComputeStats(samples)
	if err != nil {
		return nil, err
	}
	var payload uint64
	for _, text := range t.texts {
		payload += uint64(len(text))
	}
	m := s.Metrics(Throughput{PayloadBytes: payload, OpsPerTrial: float64(t.records)}).
		WithCustom("mode", string(t.mode)).
		WithCustom("record_count", t.records).
		WithCustom("total_pii_found", found).
		WithCustom("avg_pii_per_record", float64(found)/float64(t.records))
	if t.mode != ModeDetect {
		m.WithCustom("total_anonymized", anonymized)
	}
	if rps, ok := s.OpsPerSecond(float64(t.records)); ok {
		m.WithCustom("records_per_second", rps)
	}
	return NewResult(t.TargetID, m), nil
}

// processBatch runs one trial and accumulates the counts of its last pass
func (t *AnonymizationTarget) processBatch(found, anonymized *int) error {
	switch t.mode {
	case ModeDetect:
		det := t.anon.Detector()
		for _, text := range t.texts {
			*found += len(det.Detect(text))
		}
	case ModeAnonymize:
		for _, text := range t.texts {
			out, err := t.anon.Anonymize(text)
			if err != nil {
				return err
			}
			*found += out.Stats.TotalPIIFound
			*anonymized += out.Stats.TotalAnonymized
		}
	case ModeJSON:
		for _, doc := range t.docs {
			_, out, err := t.anon.AnonymizeJSON(doc)
			if err != nil {
				return err
			}
			*found += out.Stats.TotalPIIFound
			*anonymized += out.Stats.TotalAnonymized
		}
	}
	return nil
}

// Teardown implements Target
func (t *AnonymizationTarget) Teardown(context.Context) error {
	t.anon = nil
	t.texts = nil
	t.docs = nil
	return nil
}
