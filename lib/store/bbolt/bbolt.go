package bbolt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/TecharoHQ/codegate/lib/store"
	"go.etcd.io/bbolt"
)

// Sentinel error values used for testing and in admin-visible error messages.
var (
	ErrBucketDoesNotExist = errors.New("bbolt: bucket does not exist")
)

// Store implements store.Interface backed by bbolt[1].
//
// Every value lives in its own bucket nested under a root bucket (named by
// Config.Bucket) with two keys:
//
// 1. data - The raw data, usually in JSON
// 2. expiry - The expiry time formatted as a time.RFC3339Nano timestamp string
//
// This lets the cleanup phase walk every value and only scan expiry times
// without decoding records.
//
// bbolt holds an exclusive lock on its file. It is not suitable for
// deployments where multiple codegate instances must see the same challenges;
// use the valkey backend for that.
//
// [1]: https://github.com/etcd-io/bbolt
type Store struct {
	bdb    *bbolt.DB
	bucket []byte
}

func (s *Store) root(tx *bbolt.Tx) (*bbolt.Bucket, error) {
	root := tx.Bucket(s.bucket)
	if root == nil {
		return nil, fmt.Errorf("%w: %q", ErrBucketDoesNotExist, string(s.bucket))
	}

	return root, nil
}

// Delete a key from the datastore. If the key does not exist, return an error
// wrapping store.ErrNotFound.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.bdb.Update(func(tx *bbolt.Tx) error {
		root, err := s.root(tx)
		if err != nil {
			return err
		}

		if root.Bucket([]byte(key)) == nil {
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		return root.DeleteBucket([]byte(key))
	})
}

// Get a value from the datastore.
//
// Because each value is stored in its own bucket with data and expiry keys,
// two get operations are required:
//
// 1. Get the expiry key, parse as time.RFC3339Nano. If the key has expired, run deletion in the background and return a "key not found" error.
// 2. Get the data key, copy into the result byteslice, return it.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var result []byte

	if err := s.bdb.View(func(tx *bbolt.Tx) error {
		root, err := s.root(tx)
		if err != nil {
			return err
		}

		itemBucket := root.Bucket([]byte(key))
		if itemBucket == nil {
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		expiryStr := itemBucket.Get([]byte("expiry"))
		if expiryStr == nil {
			return fmt.Errorf("[unexpected] %w: %q (expiry is nil)", store.ErrNotFound, key)
		}

		expiry, err := time.Parse(time.RFC3339Nano, string(expiryStr))
		if err != nil {
			return fmt.Errorf("[unexpected] %w: %w", store.ErrCantDecode, err)
		}

		if time.Now().After(expiry) {
			go s.Delete(context.Background(), key)
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		dataStr := itemBucket.Get([]byte("data"))
		if dataStr == nil {
			return fmt.Errorf("[unexpected] %w: %q (data is nil)", store.ErrNotFound, key)
		}

		// bbolt memory is only valid for the life of the transaction
		result = make([]byte, len(dataStr))
		copy(result, dataStr)

		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// Set a value into the store with a given expiry. Setting an existing key
// replaces both its data and its expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	expires := time.Now().Add(expiry)

	return s.bdb.Update(func(tx *bbolt.Tx) error {
		root, err := s.root(tx)
		if err != nil {
			return err
		}

		valueBkt, err := root.CreateBucketIfNotExists([]byte(key))
		if err != nil {
			return fmt.Errorf("%w: %w: %q (create bucket)", store.ErrCantEncode, err, key)
		}

		if err := valueBkt.Put([]byte("expiry"), []byte(expires.Format(time.RFC3339Nano))); err != nil {
			return fmt.Errorf("%w: %q (expiry)", store.ErrCantEncode, key)
		}

		if err := valueBkt.Put([]byte("data"), value); err != nil {
			return fmt.Errorf("%w: %q (data)", store.ErrCantEncode, key)
		}

		return nil
	})
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.bdb.Close()
}

func (s *Store) cleanup(ctx context.Context) error {
	now := time.Now()

	return s.bdb.Update(func(tx *bbolt.Tx) error {
		root, err := s.root(tx)
		if err != nil {
			return err
		}

		var expired [][]byte

		if err := root.ForEachBucket(func(key []byte) error {
			valueBkt := root.Bucket(key)

			expiryStr := valueBkt.Get([]byte("expiry"))
			if expiryStr == nil {
				slog.Warn("while running cleanup, expiry is not set somehow, file a bug?", "key", string(key))
				return nil
			}

			expiry, err := time.Parse(time.RFC3339Nano, string(expiryStr))
			if err != nil {
				return fmt.Errorf("[unexpected] %w in bucket %q: %w", store.ErrCantDecode, string(key), err)
			}

			if now.After(expiry) {
				expired = append(expired, append([]byte(nil), key...))
			}

			return nil
		}); err != nil {
			return err
		}

		// buckets can't be deleted while iterating over them
		for _, key := range expired {
			if err := root.DeleteBucket(key); err != nil {
				return err
			}
		}

		return nil
	})
}

func (s *Store) cleanupThread(ctx context.Context) {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.cleanup(ctx); err != nil {
				slog.Error("error during bbolt cleanup", "err", err)
			}
		}
	}
}
