package registry_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Energy-Exe/energyexe-core-backend/internal/models"
	"github.com/Energy-Exe/energyexe-core-backend/internal/registry"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingLoader struct {
	phases []models.AssetPhase
	err    error
	calls  int
}

func (l *countingLoader) ListPhases(ctx context.Context, sources []models.Source) ([]models.AssetPhase, error) {
	l.calls++
	return l.phases, l.err
}

func samplePhases() []models.AssetPhase {
	capA := decimal.NewFromInt(100)
	capB := decimal.NewFromInt(150)
	until := time.Date(2008, 8, 29, 0, 0, 0, 0, time.UTC)
	return []models.AssetPhase{
		{ID: 1, Code: "20", Source: models.SourceNVE, Name: "Phase A", CapacityMW: &capA,
			ValidFrom: time.Date(2007, 9, 10, 0, 0, 0, 0, time.UTC), ValidUntil: &until},
		{ID: 2, Code: "20", Source: models.SourceNVE, Name: "Phase B", CapacityMW: &capB,
			ValidFrom: time.Date(2008, 8, 30, 0, 0, 0, 0, time.UTC)},
	}
}

func TestHTTPLoader_ListPhases(t *testing.T) {
	var gotSources []string
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/phases", r.URL.Path)
		gotSources = r.URL.Query()["source"]
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"phases": samplePhases()})
	}))
	defer srv.Close()

	loader := registry.NewHTTPLoader(srv.URL, "secret", time.Second, zap.NewNop())
	phases, err := loader.ListPhases(context.Background(), []models.Source{models.SourceNVE, models.SourceEIA})
	require.NoError(t, err)

	assert.Equal(t, []string{"NVE", "EIA"}, gotSources)
	assert.Equal(t, "Bearer secret", gotAuth)
	require.Len(t, phases, 2)
	assert.Equal(t, "Phase B", phases[1].Name)
	assert.True(t, phases[1].CapacityMW.Equal(decimal.NewFromInt(150)))
	assert.Nil(t, phases[1].ValidUntil)
	require.NotNil(t, phases[0].ValidUntil)
}

func TestHTTPLoader_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"unknown source"}`))
	}))
	defer srv.Close()

	loader := registry.NewHTTPLoader(srv.URL, "", time.Second, zap.NewNop())
	_, err := loader.ListPhases(context.Background(), []models.Source{"SMARD"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source")
}

func TestCachedLoader_MissThenHit(t *testing.T) {
	kv := newFakeKVStore()
	next := &countingLoader{phases: samplePhases()}
	loader := registry.NewCachedLoader(next, kv, time.Minute, zap.NewNop())
	ctx := context.Background()

	first, err := loader.ListPhases(ctx, []models.Source{models.SourceNVE, models.SourceEIA})
	require.NoError(t, err)
	second, err := loader.ListPhases(ctx, []models.Source{models.SourceEIA, models.SourceNVE})
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	assert.Equal(t, 1, kv.sets)
	require.Len(t, second, len(first))
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.True(t, first[0].ValidUntil.Equal(*second[0].ValidUntil))
	assert.True(t, first[1].CapacityMW.Equal(*second[1].CapacityMW))

	require.NoError(t, loader.Invalidate(ctx, []models.Source{models.SourceNVE, models.SourceEIA}))
	_, err = loader.ListPhases(ctx, []models.Source{models.SourceNVE, models.SourceEIA})
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedLoader_CacheFailureFallsThrough(t *testing.T) {
	kv := newFakeKVStore()
	kv.failGet = true
	next := &countingLoader{phases: samplePhases()}
	loader := registry.NewCachedLoader(next, kv, time.Minute, zap.NewNop())

	phases, err := loader.ListPhases(context.Background(), []models.Source{models.SourceNVE})
	require.NoError(t, err)
	assert.Len(t, phases, 2)
	assert.Equal(t, 1, next.calls)
}

func TestCachedLoader_LoaderErrorPropagates(t *testing.T) {
	boom := errors.New("registry down")
	loader := registry.NewCachedLoader(&countingLoader{err: boom}, newFakeKVStore(), time.Minute, zap.NewNop())

	_, err := loader.ListPhases(context.Background(), []models.Source{models.SourceNVE})
	assert.ErrorIs(t, err, boom)
}

func TestRedisKVStore_WithMiniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	kv := registry.NewRedisKVStore(client)
	ctx := context.Background()

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, registry.ErrCacheMiss)

	require.NoError(t, kv.Set(ctx, "k", "v", time.Minute))
	v, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	mr.FastForward(2 * time.Minute)
	_, err = kv.Get(ctx, "k")
	assert.ErrorIs(t, err, registry.ErrCacheMiss)

	require.NoError(t, kv.Set(ctx, "k2", "v", 0))
	require.NoError(t, kv.Del(ctx, "k2"))
	_, err = kv.Get(ctx, "k2")
	assert.ErrorIs(t, err, registry.ErrCacheMiss)
}

func TestLoadSnapshot(t *testing.T) {
	snap, err := registry.LoadSnapshot(context.Background(), &countingLoader{phases: samplePhases()},
		[]models.Source{models.SourceNVE}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Len())
	assert.Equal(t, []string{"20"}, snap.Codes(models.SourceNVE))

	_, err = registry.LoadSnapshot(context.Background(), &countingLoader{err: errors.New("down")}, nil, zap.NewNop())
	assert.Error(t, err)
}
