package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key is not found
	ErrNotFound = errors.New("key not found")
)

// CommandHistoryEntry represents a single command sent to a hub device
type CommandHistoryEntry struct {
	Gateway   string    `json:"gateway"`
	EntityID  string    `json:"entityId"`
	DeviceID  string    `json:"deviceId"`
	Command   string    `json:"command"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// Storage is the interface for bridge bookkeeping data
type Storage interface {
	// Namespaced Data Methods

	// Get retrieves data in a namespace by key
	// Returns ErrNotFound if the key doesn't exist
	Get(namespace, key string) ([]byte, error)

	// GetInt retrieves int data by key
	GetInt(namespace, key string) (int, error)

	// GetBool retrieves bool data by key
	GetBool(namespace, key string) (bool, error)

	// Set stores data in a namespace by key
	Set(namespace, key string, value []byte) error

	// SetInt stores int data by key
	SetInt(namespace, key string, value int) error

	// SetBool stores bool data by key
	SetBool(namespace, key string, value bool) error

	// Delete removes data by key
	Delete(namespace, key string) error

	// Command History Methods

	// SaveCommandHistory appends a command to history
	SaveCommandHistory(entry CommandHistoryEntry) error

	// GetCommandHistory returns up to limit commands, oldest to newest
	GetCommandHistory(limit int) ([]CommandHistoryEntry, error)

	// TrimCommandHistory keeps only the last maxCommands in history
	TrimCommandHistory(maxCommands int) error

	// Close closes the storage
	Close() error
}
