package storage

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// dataBucket stores namespaced bookkeeping values
	dataBucket = "_data"

	// historyBucket stores command history
	historyBucket = "_history"
)

// BoltStorage is a bbolt implementation of the Storage interface
type BoltStorage struct {
	db  *bbolt.DB
	seq atomic.Uint32
}

// NewBoltStorage creates a new BoltStorage instance
// The database file will be created if it doesn't exist
func NewBoltStorage(path string) (*BoltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(dataBucket)); err != nil {
			return fmt.Errorf("failed to create data bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(historyBucket)); err != nil {
			return fmt.Errorf("failed to create history bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStorage{db: db}, nil
}

// Get retrieves data in a namespace by key
func (s *BoltStorage) Get(namespace, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(dataBucket))
		if bucket == nil {
			return fmt.Errorf("data bucket not found")
		}

		nsBucket := bucket.Bucket([]byte(namespace))
		if nsBucket == nil {
			return ErrNotFound
		}

		data := nsBucket.Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}

		value = make([]byte, len(data))
		copy(value, data)
		return nil
	})

	return value, err
}

// GetInt retrieves int data by key
func (s *BoltStorage) GetInt(namespace, key string) (int, error) {
	data, err := s.Get(namespace, key)
	if err != nil {
		return 0, err
	}

	value, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, fmt.Errorf("failed to parse int: %w", err)
	}

	return value, nil
}

// GetBool retrieves bool data by key
func (s *BoltStorage) GetBool(namespace, key string) (bool, error) {
	data, err := s.Get(namespace, key)
	if err != nil {
		return false, err
	}

	value, err := strconv.ParseBool(string(data))
	if err != nil {
		return false, fmt.Errorf("failed to parse bool: %w", err)
	}

	return value, nil
}

// Set stores data in a namespace by key
func (s *BoltStorage) Set(namespace, key string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(dataBucket))
		if bucket == nil {
			return fmt.Errorf("data bucket not found")
		}

		nsBucket, err := bucket.CreateBucketIfNotExists([]byte(namespace))
		if err != nil {
			return fmt.Errorf("failed to create namespace bucket: %w", err)
		}

		return nsBucket.Put([]byte(key), value)
	})
}

// SetInt stores int data by key
func (s *BoltStorage) SetInt(namespace, key string, value int) error {
	return s.Set(namespace, key, []byte(strconv.Itoa(value)))
}

// SetBool stores bool data by key
func (s *BoltStorage) SetBool(namespace, key string, value bool) error {
	return s.Set(namespace, key, []byte(strconv.FormatBool(value)))
}

// Delete removes data by key
func (s *BoltStorage) Delete(namespace, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(dataBucket))
		if bucket == nil {
			return fmt.Errorf("data bucket not found")
		}

		nsBucket := bucket.Bucket([]byte(namespace))
		if nsBucket == nil {
			return ErrNotFound
		}

		return nsBucket.Delete([]byte(key))
	})
}

// SaveCommandHistory appends a command to history
func (s *BoltStorage) SaveCommandHistory(entry CommandHistoryEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(historyBucket))
		if bucket == nil {
			return fmt.Errorf("history bucket not found")
		}

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal history entry: %w", err)
		}

		// Unix nano keeps keys sorted; the sequence suffix separates
		// commands issued within the same nanosecond.
		key := []byte(fmt.Sprintf("%020d-%010d", entry.Timestamp.UnixNano(), s.seq.Add(1)))
		return bucket.Put(key, data)
	})
}

// GetCommandHistory returns the last N commands from history
func (s *BoltStorage) GetCommandHistory(limit int) ([]CommandHistoryEntry, error) {
	var entries []CommandHistoryEntry

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(historyBucket))
		if bucket == nil {
			return fmt.Errorf("history bucket not found")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.Last(); k != nil && len(entries) < limit; k, v = cursor.Prev() {
			var entry CommandHistoryEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				continue // Skip corrupted entries
			}
			entries = append(entries, entry)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	// Collected newest first; return oldest to newest
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	return entries, nil
}

// TrimCommandHistory keeps only the last maxCommands in history
func (s *BoltStorage) TrimCommandHistory(maxCommands int) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(historyBucket))
		if bucket == nil {
			return fmt.Errorf("history bucket not found")
		}

		count := bucket.Stats().KeyN
		if count <= maxCommands {
			return nil
		}

		// Collect first, deleting while iterating skips keys
		toDelete := count - maxCommands
		var keys [][]byte
		cursor := bucket.Cursor()
		for k, _ := cursor.First(); k != nil && len(keys) < toDelete; k, _ = cursor.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}

		for _, k := range keys {
			if err := bucket.Delete(k); err != nil {
				return fmt.Errorf("failed to delete old entry: %w", err)
			}
		}

		return nil
	})
}

// Close closes the storage
func (s *BoltStorage) Close() error {
	return s.db.Close()
}
