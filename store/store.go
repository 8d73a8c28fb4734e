/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package store is the durable record set of spec.md §3: Epoch,
// GSTLeaf, GSTRoot, EpochKey, Attestation, Nullifier, Proof, and the
// singleton SynchronizerState cursor. Store.Transaction is the only
// path that mutates persistent state during event processing --
// handlers never touch *gorm.DB directly.
package store

import (
	"fmt"

	dbconf "github.com/kthomas/go-db-config"
	"github.com/jinzhu/gorm"
)

// Store wraps the application's database connection.
type Store struct {
	db *gorm.DB
}

// Open resolves the configured database connection and ensures the
// singleton SynchronizerState row exists.
func Open() (*Store, error) {
	db := dbconf.DatabaseConnection()
	if db == nil {
		return nil, fmt.Errorf("failed to resolve database connection")
	}

	s := &Store{db: db}
	if err := s.ensureCursor(); err != nil {
		return nil, err
	}
	return s, nil
}

// Migrate runs gorm's AutoMigrate across every model this store owns.
// It is additive only; golang-migrate (cmd/migrate) owns destructive
// schema changes.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(
		&Epoch{},
		&GSTLeaf{},
		&GSTRoot{},
		&EpochKey{},
		&Attestation{},
		&Nullifier{},
		&Proof{},
		&SynchronizerState{},
	).Error
}

func (s *Store) ensureCursor() error {
	var state SynchronizerState
	if s.db.First(&state).RecordNotFound() {
		state = SynchronizerState{}
		if s.db.NewRecord(&state) {
			result := s.db.Create(&state)
			if errs := result.GetErrors(); len(errs) > 0 {
				return errs[0]
			}
		}
	}
	return nil
}

// Tx is a single Store transaction. Every handler receives one of
// these; it is the only way a handler may read or write persisted
// state (spec.md §4.1, §4.3).
type Tx struct {
	db *gorm.DB
}

// View runs fn against a read-only *Tx backed directly by the store's
// connection -- no transaction is opened and no commit is required.
// UserState uses this; it never calls Transaction, since it only
// ever reads (spec.md §5).
func (s *Store) View(fn func(tx *Tx) error) error {
	return fn(&Tx{db: s.db})
}

// Transaction executes fn against a batched writer and commits
// atomically; on any error returned by fn, nothing is persisted
// (spec.md §4.1).
func (s *Store) Transaction(fn func(tx *Tx) error) error {
	dbtx := s.db.Begin()
	if dbtx.Error != nil {
		return fmt.Errorf("failed to begin store transaction: %s", dbtx.Error.Error())
	}

	tx := &Tx{db: dbtx}

	if err := fn(tx); err != nil {
		dbtx.Rollback()
		return err
	}

	if err := dbtx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit store transaction: %s", err.Error())
	}

	return nil
}

// Create persists a new row. The model must implement a validate()
// method per the teacher's model idiom; callers invoke Create only on
// models defined within this package, so validate() is always present.
func (tx *Tx) create(model modelValidator) error {
	if !model.validate() {
		return fmt.Errorf("validation failed: %v", model)
	}

	if !tx.db.NewRecord(model) {
		return fmt.Errorf("refusing to create a record that already has an id")
	}

	result := tx.db.Create(model)
	if errs := result.GetErrors(); len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// update persists field-level changes to an existing row.
func (tx *Tx) update(model modelValidator, updates map[string]interface{}) error {
	result := tx.db.Model(model).Updates(updates)
	if errs := result.GetErrors(); len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// delete removes a row.
func (tx *Tx) delete(model interface{}) error {
	result := tx.db.Delete(model)
	if errs := result.GetErrors(); len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// findOne loads at most one row matching where into out. It returns
// ErrNotFound when no row matches.
func (tx *Tx) findOne(out interface{}, where ...interface{}) error {
	query := tx.db
	if len(where) > 0 {
		query = query.Where(where[0], where[1:]...)
	}
	if query.First(out).RecordNotFound() {
		return ErrNotFound
	}
	return nil
}

// findMany loads every row matching where into out, ordered by orderBy
// (empty string means unordered).
func (tx *Tx) findMany(out interface{}, orderBy string, where ...interface{}) error {
	query := tx.db
	if len(where) > 0 {
		query = query.Where(where[0], where[1:]...)
	}
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	return query.Find(out).Error
}

// count returns the number of rows matching where.
func (tx *Tx) count(model interface{}, where ...interface{}) (int, error) {
	var n int
	query := tx.db.Model(model)
	if len(where) > 0 {
		query = query.Where(where[0], where[1:]...)
	}
	if err := query.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// modelValidator is implemented by every model in this package.
type modelValidator interface {
	validate() bool
}

// ErrNotFound is returned by findOne (and the typed query helpers
// built on it) when no matching row exists.
var ErrNotFound = fmt.Errorf("record not found")
