// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package connection

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/taibuivan/datamira/internal/platform/apperr"
)

// # PostgreSQL Driver

// postgresConnection implements [LiveConnection] over a pgx pool.
type postgresConnection struct {
	pool *pgxpool.Pool
}

// postgresDSN renders the connection coordinates as a pgx URL. Additional
// properties become query parameters (sslmode, connect_timeout and friends).
func postgresDSN(params Params) string {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		url.QueryEscape(params.Username), url.QueryEscape(params.Password),
		params.Host, params.Port, url.PathEscape(params.DatabaseName))

	if len(params.AdditionalProperties) > 0 {
		options := url.Values{}
		for key, value := range params.AdditionalProperties {
			options.Set(key, value)
		}
		dsn += "?" + options.Encode()
	}
	return dsn
}

// openPostgres dials a PostgreSQL target and verifies it with a ping.
func openPostgres(context context.Context, params Params) (LiveConnection, error) {
	config, err := pgxpool.ParseConfig(postgresDSN(params))
	if err != nil {
		return nil, apperr.Unreachable("Invalid PostgreSQL coordinates", err)
	}

	// Exploration traffic is bursty but light; keep the pool small.
	config.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(context, config)
	if err != nil {
		return nil, apperr.Unreachable("Could not open PostgreSQL pool", err)
	}

	if err := pool.Ping(context); err != nil {
		pool.Close()
		return nil, apperr.Unreachable("PostgreSQL target did not respond", err)
	}

	return &postgresConnection{pool: pool}, nil
}

func (connection *postgresConnection) Kind() DatabaseKind { return KindPostgreSQL }

func (connection *postgresConnection) Ping(context context.Context) error {
	if err := connection.pool.Ping(context); err != nil {
		return apperr.Unreachable("PostgreSQL target did not respond", err)
	}
	return nil
}

func (connection *postgresConnection) Execute(context context.Context, query string, maxRows int) (*QueryResult, error) {
	rows, err := connection.pool.Query(context, query)
	if err != nil {
		return nil, apperr.DriverError("PostgreSQL rejected the query", err)
	}
	defer rows.Close()

	descriptions := rows.FieldDescriptions()
	columns := make([]string, len(descriptions))
	for i, description := range descriptions {
		columns[i] = description.Name
	}

	result := &QueryResult{Columns: columns, Rows: make([][]any, 0, maxRows)}
	for rows.Next() {
		if len(result.Rows) >= maxRows {
			result.Truncated = true
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, apperr.DriverError("PostgreSQL row decode failed", err)
		}
		result.Rows = append(result.Rows, values)
	}

	if err := rows.Err(); err != nil && !result.Truncated {
		return nil, apperr.DriverError("PostgreSQL result stream failed", err)
	}

	result.RowCount = len(result.Rows)
	return result, nil
}

// postgresWalkQuery enumerates user tables with their columns and primary
// key membership from the information schema.
const postgresWalkQuery = `
	SELECT c.table_name,
	       c.column_name,
	       c.data_type,
	       c.is_nullable = 'YES',
	       COALESCE(pk.is_primary, FALSE)
	FROM information_schema.columns c
	LEFT JOIN (
	    SELECT kcu.table_name, kcu.column_name, TRUE AS is_primary
	    FROM information_schema.table_constraints tc
	    JOIN information_schema.key_column_usage kcu
	      ON tc.constraint_name = kcu.constraint_name
	     AND tc.table_schema = kcu.table_schema
	    WHERE tc.constraint_type = 'PRIMARY KEY'
	) pk ON pk.table_name = c.table_name AND pk.column_name = c.column_name
	WHERE c.table_schema = 'public'
	ORDER BY c.table_name, c.ordinal_position`

// postgresForeignKeyQuery enumerates foreign key edges between user tables.
const postgresForeignKeyQuery = `
	SELECT kcu.table_name,
	       kcu.column_name,
	       ccu.table_name,
	       ccu.column_name
	FROM information_schema.table_constraints tc
	JOIN information_schema.key_column_usage kcu
	  ON tc.constraint_name = kcu.constraint_name
	 AND tc.table_schema = kcu.table_schema
	JOIN information_schema.constraint_column_usage ccu
	  ON tc.constraint_name = ccu.constraint_name
	 AND tc.table_schema = ccu.table_schema
	WHERE tc.constraint_type = 'FOREIGN KEY'
	  AND tc.table_schema = 'public'`

func (connection *postgresConnection) WalkSchema(context context.Context) ([]SchemaTable, error) {
	rows, err := connection.pool.Query(context, postgresWalkQuery)
	if err != nil {
		return nil, apperr.DriverError("PostgreSQL schema walk failed", err)
	}
	defer rows.Close()

	index := map[string]*SchemaTable{}
	order := make([]string, 0)

	for rows.Next() {
		var tableName string
		var column SchemaColumn
		if err := rows.Scan(&tableName, &column.Name, &column.DataType, &column.Nullable, &column.IsPrimaryKey); err != nil {
			return nil, apperr.DriverError("PostgreSQL schema row decode failed", err)
		}

		table, ok := index[tableName]
		if !ok {
			table = &SchemaTable{Name: tableName}
			index[tableName] = table
			order = append(order, tableName)
		}
		table.Columns = append(table.Columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.DriverError("PostgreSQL schema stream failed", err)
	}

	foreignKeys, err := connection.pool.Query(context, postgresForeignKeyQuery)
	if err != nil {
		return nil, apperr.DriverError("PostgreSQL foreign key walk failed", err)
	}
	defer foreignKeys.Close()

	for foreignKeys.Next() {
		var tableName string
		var edge ForeignKey
		if err := foreignKeys.Scan(&tableName, &edge.Column, &edge.ReferencedTable, &edge.ReferencedColumn); err != nil {
			return nil, apperr.DriverError("PostgreSQL foreign key decode failed", err)
		}
		if table, ok := index[tableName]; ok {
			table.ForeignKeys = append(table.ForeignKeys, edge)
		}
	}
	if err := foreignKeys.Err(); err != nil {
		return nil, apperr.DriverError("PostgreSQL foreign key stream failed", err)
	}

	tables := make([]SchemaTable, 0, len(order))
	for _, name := range order {
		tables = append(tables, *index[name])
	}
	return tables, nil
}

func (connection *postgresConnection) Close(context context.Context) error {
	connection.pool.Close()
	return nil
}
