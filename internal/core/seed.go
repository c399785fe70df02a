package core

import (
	"context"
	"duesdesk/pkg/domain"
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed seed/sample.json
var sampleDataJSON []byte

// SampleData is the fixed dataset used to bootstrap an empty store.
type SampleData struct {
	Students          []Student          `json:"students"`
	Fees              []Fee              `json:"fees"`
	DRCCApplications  []DRCCApplication  `json:"drccApplications"`
	NoDueApplications []NoDueApplication `json:"noDueApplications"`
}

// LoadSampleData decodes the embedded dataset.
func LoadSampleData() (SampleData, error) {
	var data SampleData
	if err := json.Unmarshal(sampleDataJSON, &data); err != nil {
		return SampleData{}, fmt.Errorf("decode sample data: %w", err)
	}
	return data, nil
}

// Seed writes the sample dataset to all four collections when the students
// key is absent, and reports whether it did. Existing data in the other
// collections is overwritten in that case and never inspected otherwise.
func (s *Service) Seed(ctx context.Context) (bool, error) {
	var seeded bool
	err := s.run(ctx, "seed", func(ctx context.Context) error {
		present, err := s.store.Has(ctx, domain.KeyStudents)
		if err != nil {
			return err
		}
		if present {
			return nil
		}
		data, err := LoadSampleData()
		if err != nil {
			return err
		}
		writes := []struct {
			key   string
			value any
		}{
			{domain.KeyFees, data.Fees},
			{domain.KeyDRCCApplications, data.DRCCApplications},
			{domain.KeyNoDueApplications, data.NoDueApplications},
			// students last: its presence marks the store as seeded
			{domain.KeyStudents, data.Students},
		}
		for _, w := range writes {
			if err := s.store.write(ctx, w.key, w.value); err != nil {
				return err
			}
		}
		seeded = true
		s.logger.Info("seeded sample data", "students", len(data.Students), "fees", len(data.Fees))
		return nil
	})
	return seeded, err
}
