// Package creds stores backend service credentials and per-service
// settings as msgpack documents in a BadgerDB keyspace.
//
// Each document is keyed by service name ("openai", "gemini", ...) and
// carries whatever that adapter needs: API key, base URL, model, voice.
// The CLI manages documents with `voxline creds set/get/list/delete`.
package creds

import (
	"context"
	"errors"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotFound is returned when no document exists for a service.
var ErrNotFound = errors.New("creds: not found")

// keyPrefix namespaces credential documents within the database.
const keyPrefix = "creds:"

// Document holds the configuration for one backend service.
type Document struct {
	Service  string `msgpack:"service"`
	APIKey   string `msgpack:"api_key,omitempty"`
	BaseURL  string `msgpack:"base_url,omitempty"`
	Model    string `msgpack:"model,omitempty"`
	Voice    string `msgpack:"voice,omitempty"`
	Language string `msgpack:"language,omitempty"`
}

// Store persists credential documents.
type Store struct {
	db *badger.DB
}

// Options configures a Store.
type Options struct {
	// Dir is the directory for database files. Required unless InMemory.
	Dir string

	// InMemory runs the database without disk persistence. For tests.
	InMemory bool
}

// Open opens (or creates) a credential store.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("creds: Options.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(nil)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("creds: open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func key(service string) []byte {
	return []byte(keyPrefix + service)
}

// Set stores or replaces the document for doc.Service.
func (s *Store) Set(_ context.Context, doc Document) error {
	if doc.Service == "" {
		return errors.New("creds: document missing service name")
	}
	data, err := msgpack.Marshal(doc)
	if err != nil {
		return fmt.Errorf("creds: encode %s: %w", doc.Service, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(doc.Service), data)
	})
}

// Get fetches the document for a service. Returns ErrNotFound if absent.
func (s *Store) Get(_ context.Context, service string) (Document, error) {
	var doc Document
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(service))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &doc)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("creds: get %s: %w", service, err)
	}
	return doc, nil
}

// Delete removes a service document (idempotent).
func (s *Store) Delete(_ context.Context, service string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(service))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

// List returns the names of all configured services, sorted.
func (s *Store) List(_ context.Context) ([]string, error) {
	var names []string
	prefix := []byte(keyPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k := it.Item().KeyCopy(nil)
			names = append(names, string(k[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creds: list: %w", err)
	}
	sort.Strings(names)
	return names, nil
}
