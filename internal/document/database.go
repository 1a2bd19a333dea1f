package document

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const bucketName = "classifications"

// DB defines the interface for classification history storage
type DB interface {
	// SaveClassification saves a classification to the database
	SaveClassification(record *Classification) error

	// GetClassification retrieves a classification by ID
	GetClassification(id string) (*Classification, error)

	// ListClassifications returns all classifications
	ListClassifications() ([]*Classification, error)

	// DeleteClassification removes a classification from the database
	DeleteClassification(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveClassification saves a classification to the database
func (b *BoltDB) SaveClassification(record *Classification) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshaling classification: %w", err)
		}
		return bucket.Put([]byte(record.ID), data)
	})
}

// GetClassification retrieves a classification by ID
func (b *BoltDB) GetClassification(id string) (*Classification, error) {
	var record *Classification
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListClassifications returns all classifications in key order
func (b *BoltDB) ListClassifications() ([]*Classification, error) {
	records := make([]*Classification, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var record Classification
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("unmarshaling classification: %w", err)
			}
			records = append(records, &record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteClassification removes a classification from the database
func (b *BoltDB) DeleteClassification(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
