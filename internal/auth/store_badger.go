// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package auth

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/freightmesh/stevedore/internal/metrics"
)

// BadgerStore persists session values in a Badger database so sessions
// survive process restarts. It is the primary backend of the store factory.
type BadgerStore struct {
	db     *badger.DB
	ownsDB bool
}

var _ Store = (*BadgerStore)(nil)

// NewBadgerStore opens (or creates) a Badger database at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}

	return &BadgerStore{db: db, ownsDB: true}, nil
}

// NewBadgerStoreWithDB wraps an existing database. The caller keeps
// ownership and Close becomes a no-op.
func NewBadgerStoreWithDB(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// DB exposes the underlying database for the storage-watch sync transport.
func (s *BadgerStore) DB() *badger.DB {
	return s.db
}

// Get retrieves a value by key.
func (s *BadgerStore) Get(_ context.Context, key string) (string, error) {
	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		value = string(raw)
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		metrics.RecordStoreOperation(s.Name(), "get", ErrKeyNotFound)
		return "", ErrKeyNotFound
	}
	if err != nil {
		metrics.RecordStoreOperation(s.Name(), "get", err)
		return "", fmt.Errorf("failed to get %s: %w", key, err)
	}
	metrics.RecordStoreOperation(s.Name(), "get", nil)
	return value, nil
}

// Set stores a value under key.
func (s *BadgerStore) Set(_ context.Context, key, value string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	metrics.RecordStoreOperation(s.Name(), "set", err)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting an absent key succeeds.
func (s *BadgerStore) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	metrics.RecordStoreOperation(s.Name(), "delete", err)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Name identifies the backend.
func (s *BadgerStore) Name() string {
	return "badger"
}

// Close closes the database if this store opened it.
func (s *BadgerStore) Close() error {
	if !s.ownsDB || s.db == nil {
		return nil
	}
	return s.db.Close()
}
