package prediction

import (
	"context"
	"sync"

	"lawnwatch/internal/types"
)

// MemoryStore is an in-process SampleStore used when no database is
// configured, such as one-shot CLI predictions.
type MemoryStore struct {
	mu      sync.RWMutex
	samples []types.TrainingSample
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Create(_ context.Context, sample types.TrainingSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	return nil
}

// FindMany walks samples newest first, applying filter until limit matches.
func (s *MemoryStore) FindMany(_ context.Context, filter types.SampleFilter, limit int) ([]types.TrainingSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.TrainingSample
	for i := len(s.samples) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		sample := s.samples[i]
		if filter.TreatmentType != "" && sample.TreatmentType != filter.TreatmentType {
			continue
		}
		if sample.DataQuality < filter.MinDataQuality {
			continue
		}
		if filter.Since != nil && sample.Timestamp.Before(*filter.Since) {
			continue
		}
		out = append(out, sample)
	}
	return out, nil
}
