// Package storage provides the persistent prediction log of the rainfall
// service. It uses BoltDB as the underlying storage engine and keys records
// by station and timestamp so a station's history can be read back with a
// single cursor range scan.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

// Store provides persistent storage for served predictions using BoltDB.
type Store struct {
	db *bbolt.DB
}

// New creates a new storage instance with the specified data path.
// It opens the BoltDB database and creates the predictions bucket.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "rainfall-predictions.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StorePrediction appends a record to the prediction log.
func (s *Store) StorePrediction(rec PredictionRecord) error {
	if rec.Station == "" {
		return errors.New("prediction record has no station")
	}
	if rec.Timestamp.IsZero() {
		return errors.New("prediction record has no timestamp")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal prediction: %w", err)
		}

		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		return b.Put(recordKey(rec.Station, rec.Timestamp, seq), data)
	})
}

// GetPredictionsInRange returns a station's predictions between start and
// end inclusive, ordered by timestamp.
func (s *Store) GetPredictionsInRange(station string, start, end time.Time) ([]PredictionRecord, error) {
	var records []PredictionRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))
		c := b.Cursor()

		prefix := []byte(station + "_")
		startKey, endKey := rangeKeys(station, start, end)

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			if !bytes.HasPrefix(k, prefix) || len(k) != len(endKey) {
				continue
			}

			var rec PredictionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // Skip malformed records
			}
			records = append(records, rec)
		}
		return nil
	})

	return records, err
}

func padNanos(ts time.Time) string {
	n := ts.UnixNano()
	if n < 0 {
		n = 0
	}
	return fmt.Sprintf("%019d", n)
}
