package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"rainfall-predictor/internal/features"
	"rainfall-predictor/internal/weather"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func record(station string, ts time.Time, prob float64) PredictionRecord {
	label := "no-rain"
	if prob > 0.6 {
		label = "rain"
	}
	return PredictionRecord{
		ID:        station + ts.Format(time.RFC3339Nano),
		Station:   station,
		Timestamp: ts,
		Observation: weather.Reading{
			Pressure: 1012, Temperature: 20, Dewpoint: 15, Humidity: 80,
			Cloud: 50, Sunshine: 6, WindDirection: 180, WindSpeed: 10,
		},
		Features: features.NewVector([]features.Column{
			{Name: features.ColPressure, Value: 0.12},
			{Name: features.ColTemparature, Value: -0.4},
		}),
		Label:        label,
		Probability:  prob,
		Threshold:    0.6,
		ModelVersion: "test",
	}
}

func TestNew(t *testing.T) {
	tempDir := t.TempDir()

	store, err := New(tempDir)
	require.NoError(t, err)
	defer store.Close()

	require.NotNil(t, store.db)
	_, err = os.Stat(filepath.Join(tempDir, "rainfall-predictions.db"))
	assert.NoError(t, err)

	err = store.db.View(func(tx *bbolt.Tx) error {
		assert.NotNil(t, tx.Bucket([]byte(predictionsBucket)))
		return nil
	})
	assert.NoError(t, err)
}

func TestNew_InvalidPath(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing", "dir"))
	assert.Error(t, err)
}

func TestStore_Close(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestStore_CloseNilDB(t *testing.T) {
	store := &Store{db: nil}
	assert.NoError(t, store.Close())
}

func TestStorePrediction_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := record("heathrow", ts, 0.72)

	require.NoError(t, store.StorePrediction(rec))

	got, err := store.GetPredictionsInRange("heathrow", ts, ts)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec.ID, got[0].ID)
	assert.True(t, rec.Timestamp.Equal(got[0].Timestamp))
	assert.Equal(t, rec.Observation, got[0].Observation)
	assert.Equal(t, rec.Features.Names(), got[0].Features.Names())
	assert.Equal(t, rec.Features.Values(), got[0].Features.Values())
	assert.Equal(t, "rain", got[0].Label)
	assert.Equal(t, 0.72, got[0].Probability)
}

func TestStorePrediction_RequiresKey(t *testing.T) {
	store := newTestStore(t)

	rec := record("", time.Now(), 0.5)
	assert.Error(t, store.StorePrediction(rec))

	rec = record("heathrow", time.Time{}, 0.5)
	assert.Error(t, store.StorePrediction(rec))
}

func TestGetPredictionsInRange(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.StorePrediction(record("heathrow", base.Add(time.Duration(i)*time.Hour), 0.1*float64(i))))
	}
	require.NoError(t, store.StorePrediction(record("gatwick", base.Add(2*time.Hour), 0.9)))

	testCases := []struct {
		name    string
		station string
		start   time.Time
		end     time.Time
		want    int
	}{
		{"all heathrow", "heathrow", base, base.Add(4 * time.Hour), 5},
		{"inclusive bounds", "heathrow", base.Add(time.Hour), base.Add(3 * time.Hour), 3},
		{"before first", "heathrow", base.Add(-2 * time.Hour), base.Add(-time.Hour), 0},
		{"other station", "gatwick", base, base.Add(4 * time.Hour), 1},
		{"unknown station", "luton", base, base.Add(4 * time.Hour), 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := store.GetPredictionsInRange(tc.station, tc.start, tc.end)
			require.NoError(t, err)
			assert.Len(t, got, tc.want)
			for i := 1; i < len(got); i++ {
				assert.True(t, got[i-1].Timestamp.Before(got[i].Timestamp))
			}
			for _, rec := range got {
				assert.Equal(t, tc.station, rec.Station)
			}
		})
	}
}

func TestStorePrediction_SameTimestamp(t *testing.T) {
	store := newTestStore(t)
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	first := record("heathrow", ts, 0.2)
	first.ID = "first"
	second := record("heathrow", ts, 0.9)
	second.ID = "second"
	require.NoError(t, store.StorePrediction(first))
	require.NoError(t, store.StorePrediction(second))

	got, err := store.GetPredictionsInRange("heathrow", ts, ts)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].ID)
	assert.Equal(t, "second", got[1].ID)
}

func TestStorePrediction_ConcurrentSameTimestamp(t *testing.T) {
	store := newTestStore(t)
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := record("heathrow", ts, 0.5)
			rec.ID = fmt.Sprintf("rec-%d", i)
			assert.NoError(t, store.StorePrediction(rec))
		}(i)
	}
	wg.Wait()

	got, err := store.GetPredictionsInRange("heathrow", ts, ts)
	require.NoError(t, err)
	assert.Len(t, got, 20)
}

func TestGetPredictionsInRange_StationPrefixes(t *testing.T) {
	store := newTestStore(t)
	ts := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.StorePrediction(record("a", ts, 0.3)))
	require.NoError(t, store.StorePrediction(record("a_1", ts, 0.3)))

	got, err := store.GetPredictionsInRange("a", ts.Add(-time.Hour), ts.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Station)
}

func TestGetPredictionsInRange_SkipsMalformed(t *testing.T) {
	store := newTestStore(t)
	ts := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.StorePrediction(record("heathrow", ts, 0.3)))

	err := store.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(predictionsBucket)).Put(recordKey("heathrow", ts.Add(time.Minute), 99), []byte("{not json"))
	})
	require.NoError(t, err)

	got, err := store.GetPredictionsInRange("heathrow", ts, ts.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStore_Persistence(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	store, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, store.StorePrediction(record("heathrow", ts, 0.8)))
	require.NoError(t, store.Close())

	store, err = New(dir)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.GetPredictionsInRange("heathrow", ts, ts)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
