// Package storage implements the relational store backing the consensus
// engine. The schema is append-mostly: balances are the only rows ever
// updated in place, everything else is written once with a status string
// beginning "valid" or "invalid: ...".
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/glebarez/sqlite"
)

// Store wraps the consensus database.
type Store struct {
	db *sql.DB
}

// ErrPathRequired is returned when the database path is missing.
var ErrPathRequired = errors.New("storage: database path must be configured")

const schema = `
CREATE TABLE IF NOT EXISTS balances(
    address TEXT,
    asset TEXT,
    quantity INTEGER);
CREATE UNIQUE INDEX IF NOT EXISTS address_asset_idx ON balances (address, asset);
CREATE INDEX IF NOT EXISTS balances_asset_idx ON balances (asset);

CREATE TABLE IF NOT EXISTS credits(
    block_index INTEGER,
    address TEXT,
    asset TEXT,
    quantity INTEGER,
    action TEXT,
    event TEXT);
CREATE INDEX IF NOT EXISTS credits_address_idx ON credits (address);

CREATE TABLE IF NOT EXISTS debits(
    block_index INTEGER,
    address TEXT,
    asset TEXT,
    quantity INTEGER,
    action TEXT,
    event TEXT);
CREATE INDEX IF NOT EXISTS debits_address_idx ON debits (address);

CREATE TABLE IF NOT EXISTS assets(
    asset_id TEXT UNIQUE,
    asset_name TEXT UNIQUE,
    block_index INTEGER,
    asset_longname TEXT);
CREATE INDEX IF NOT EXISTS assets_longname_idx ON assets (asset_longname);

INSERT OR IGNORE INTO assets(asset_id, asset_name, block_index, asset_longname)
    VALUES ('0', 'GASP', 0, NULL), ('1', 'ASP', 0, NULL);

CREATE TABLE IF NOT EXISTS issuances(
    tx_index INTEGER PRIMARY KEY,
    tx_hash TEXT UNIQUE,
    block_index INTEGER,
    asset TEXT,
    quantity INTEGER,
    divisible BOOL,
    issuer TEXT,
    status TEXT);
CREATE INDEX IF NOT EXISTS issuances_status_asset_idx ON issuances (status, asset);

CREATE TABLE IF NOT EXISTS destructions(
    tx_index INTEGER PRIMARY KEY,
    tx_hash TEXT UNIQUE,
    block_index INTEGER,
    source TEXT,
    asset TEXT,
    quantity INTEGER,
    status TEXT);
CREATE INDEX IF NOT EXISTS destructions_status_asset_idx ON destructions (status, asset);

CREATE TABLE IF NOT EXISTS broadcasts(
    tx_index INTEGER PRIMARY KEY,
    tx_hash TEXT UNIQUE,
    block_index INTEGER,
    source TEXT,
    timestamp INTEGER,
    value REAL,
    fee_fraction_int INTEGER,
    text TEXT,
    locked BOOL,
    status TEXT);
CREATE INDEX IF NOT EXISTS broadcasts_status_source_idx ON broadcasts (status, source, tx_index);

CREATE TABLE IF NOT EXISTS addresses(
    address TEXT UNIQUE,
    options INTEGER,
    block_index INTEGER);

CREATE TABLE IF NOT EXISTS dividends(
    tx_index INTEGER PRIMARY KEY,
    tx_hash TEXT UNIQUE,
    block_index INTEGER,
    source TEXT,
    asset TEXT,
    dividend_asset TEXT,
    quantity_per_unit INTEGER,
    fee_paid INTEGER,
    status TEXT);
CREATE INDEX IF NOT EXISTS dividends_asset_idx ON dividends (asset);

CREATE TABLE IF NOT EXISTS proofofwork(
    tx_hash TEXT UNIQUE,
    block_index INTEGER,
    address TEXT,
    mined INTEGER,
    status TEXT);
CREATE INDEX IF NOT EXISTS proofofwork_status_idx ON proofofwork (status);

CREATE TABLE IF NOT EXISTS escrows(
    address TEXT,
    asset TEXT,
    quantity INTEGER,
    status TEXT,
    ref TEXT);
CREATE INDEX IF NOT EXISTS escrows_asset_status_idx ON escrows (asset, status);

CREATE TABLE IF NOT EXISTS undo_journal(
    block_index INTEGER PRIMARY KEY,
    ops BLOB);
`

// Open initialises the store at the given sqlite path and applies the schema.
func Open(path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
