package pipeline_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Energy-Exe/energyexe-core-backend/internal/models"
	"github.com/Energy-Exe/energyexe-core-backend/internal/repository"
)

// fakeRawStore serves raw rows by stored period start.
type fakeRawStore struct {
	rows []models.RawObservation
}

func (f *fakeRawStore) FetchRange(ctx context.Context, source models.Source, start, end time.Time) ([]models.RawObservation, error) {
	var out []models.RawObservation
	for _, r := range f.rows {
		if r.Source == source && !r.PeriodStart.Before(start) && r.PeriodStart.Before(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

// fakeTable emulates generation_data keyed by natural key.
type fakeTable struct {
	mu    sync.Mutex
	rows  map[string]models.HarmonizedRecord
	calls int
	err   error
}

func newFakeTable() *fakeTable {
	return &fakeTable{rows: make(map[string]models.HarmonizedRecord)}
}

func (f *fakeTable) ReplaceRange(ctx context.Context, source models.Source, start, end time.Time, records []models.HarmonizedRecord) (repository.WriteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return repository.WriteResult{}, f.err
	}

	var res repository.WriteResult
	for k, r := range f.rows {
		if r.Source == source && !r.BucketStart.Before(start) && r.BucketStart.Before(end) {
			delete(f.rows, k)
			res.Deleted++
		}
	}
	for _, r := range records {
		f.rows[r.NaturalKey()] = r
		res.Inserted++
	}
	return res, nil
}

// snapshot returns the table sorted by natural key.
func (f *fakeTable) snapshot() []models.HarmonizedRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.HarmonizedRecord, 0, len(f.rows))
	for _, r := range f.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NaturalKey() < out[j].NaturalKey() })
	return out
}
