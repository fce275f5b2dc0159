// Package boltstore is an embedded BoltDB backend for the billing webhook:
// the subscriptions table and the processed-event ledger live in one file,
// so the webhook can run without a Supabase project (local dev, tests).
package boltstore

import (
	"context"
	"encoding/json"
	"time"

	bolt "github.com/boltdb/bolt"

	"github.com/boddenberg/family-rewards-bfa-go/internal/domain"
)

var (
	subscriptionsBucket = []byte("subscriptions")
	eventsBucket        = []byte("webhook_events")
)

// Store wraps a BoltDB database. Subscriptions are keyed by user id and
// ledger rows by event id.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database at path and ensures both buckets exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{subscriptionsBucket, eventsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is still open.
func (s *Store) Ping(_ context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error { return nil })
}

// ============================================================
// Webhook event ledger
// ============================================================

// IsEventProcessed reports whether eventID is in the ledger.
func (s *Store) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(eventsBucket).Get([]byte(eventID)) != nil
		return nil
	})
	return found, err
}

// RecordEvent stores rec unless its id is already present, in which case
// the stored row is left untouched and *domain.ErrDuplicate is returned.
func (s *Store) RecordEvent(_ context.Context, rec *domain.WebhookEventRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(eventsBucket)
		if b.Get([]byte(rec.EventID)) != nil {
			return &domain.ErrDuplicate{Key: rec.EventID}
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(rec.EventID), data)
	})
}

// ============================================================
// Subscriptions
// ============================================================

// GetSubscriptionByUser returns nil, nil when the user has no row.
func (s *Store) GetSubscriptionByUser(_ context.Context, userID string) (*domain.SubscriptionRecord, error) {
	var rec *domain.SubscriptionRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(subscriptionsBucket).Get([]byte(userID))
		if v == nil {
			return nil
		}
		rec = &domain.SubscriptionRecord{}
		return json.Unmarshal(v, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// InsertSubscription creates the user's row. A second insert for the same
// user is a duplicate, mirroring the unique user_id constraint.
func (s *Store) InsertSubscription(_ context.Context, rec *domain.SubscriptionRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(subscriptionsBucket)
		if b.Get([]byte(rec.UserID)) != nil {
			return &domain.ErrDuplicate{Key: rec.UserID}
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(rec.UserID), data)
	})
}

// UpdateSubscription merges fields (column name to value) into the stored
// row. Updating a user without a row is a no-op, as a PATCH matching zero
// rows is.
func (s *Store) UpdateSubscription(_ context.Context, userID string, fields map[string]any) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(subscriptionsBucket)
		v := b.Get([]byte(userID))
		if v == nil {
			return nil
		}

		var row map[string]json.RawMessage
		if err := json.Unmarshal(v, &row); err != nil {
			return err
		}
		for k, val := range fields {
			raw, err := json.Marshal(val)
			if err != nil {
				return err
			}
			row[k] = raw
		}

		data, err := json.Marshal(row)
		if err != nil {
			return err
		}
		// round-trip through the record type so unknown columns are dropped
		var rec domain.SubscriptionRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		if data, err = json.Marshal(rec); err != nil {
			return err
		}
		return b.Put([]byte(userID), data)
	})
}
