// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package connection manages saved connection profiles and live database
handles for the data plane.

It is the single owner of every live driver handle in the process. Other
components never touch a target database directly; they send commands to the
connection manager, which executes them against the owned handle and replies
with plain data.

# Supported Engines

  - POSTGRESQL via pgx
  - MYSQL via database/sql with the mysql driver
  - MONGODB via the official mongo driver
*/
package connection

import (
	"time"
)

// # Database Kinds

// DatabaseKind identifies a supported target database engine.
type DatabaseKind string

const (
	KindPostgreSQL DatabaseKind = "POSTGRESQL"
	KindMySQL      DatabaseKind = "MYSQL"
	KindMongoDB    DatabaseKind = "MONGODB"
)

// IsValid reports whether the kind names a supported engine.
func (kind DatabaseKind) IsValid() bool {
	switch kind {
	case KindPostgreSQL, KindMySQL, KindMongoDB:
		return true
	}
	return false
}

// # Entities

// SavedConnection is a persisted connection profile owned by one user.
//
// The (UserID, Name) pair is unique among active profiles. Deactivated
// profiles free the name for reuse.
type SavedConnection struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	Name         string       `json:"name"`
	Kind         DatabaseKind `json:"kind"`
	Host         string       `json:"host"`
	Port         int          `json:"port"`
	DatabaseName string       `json:"database_name"`
	Username     string       `json:"username"`
	Password     string       `json:"-"` // Secret. Never serialized outward.

	// AdditionalProperties carries engine-specific driver options
	// (sslmode, authSource, charset) verbatim into the DSN.
	AdditionalProperties map[string]string `json:"additional_properties,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	IsActive   bool       `json:"is_active"`
}

// Params carries the raw coordinates needed to open a connection.
type Params struct {
	Kind                 DatabaseKind
	Host                 string
	Port                 int
	DatabaseName         string
	Username             string
	Password             string
	AdditionalProperties map[string]string
}

// # Query Results

// QueryResult is the engine-neutral shape of an executed read query.
type QueryResult struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	RowCount  int      `json:"row_count"`
	Truncated bool     `json:"truncated"`
}

// # Schema Snapshot

// SchemaColumn describes one column (or inferred document field).
type SchemaColumn struct {
	Name         string `json:"name"`
	DataType     string `json:"data_type"`
	Nullable     bool   `json:"nullable"`
	IsPrimaryKey bool   `json:"is_primary_key"`
}

// ForeignKey describes a relationship from a local column to another table.
type ForeignKey struct {
	Column           string `json:"column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// SchemaTable is one table (or collection) in a schema walk.
type SchemaTable struct {
	Name        string         `json:"name"`
	Columns     []SchemaColumn `json:"columns"`
	ForeignKeys []ForeignKey   `json:"foreign_keys"`
}

// LiveStatus is a point-in-time view of one live handle, reported by the
// connection manager's status command.
type LiveStatus struct {
	ConnectionID string       `json:"connection_id"`
	UserID       string       `json:"user_id"`
	Kind         DatabaseKind `json:"kind"`
	DatabaseName string       `json:"database_name"`
	ConnectedAt  time.Time    `json:"connected_at"`
}

// # Field Identifiers

// Field names for validation in the connection domain.
const (
	FieldName         = "name"
	FieldKind         = "kind"
	FieldHost         = "host"
	FieldPort         = "port"
	FieldDatabaseName = "database_name"
	FieldUsername     = "username"
	FieldConnectionID = "connection_id"
)
