// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package connection

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/taibuivan/datamira/internal/platform/apperr"
)

// # MySQL Driver

// mysqlConnection implements [LiveConnection] over database/sql with the
// mysql driver.
type mysqlConnection struct {
	database *sql.DB
}

// mysqlConfig renders the connection coordinates as a driver config.
// Additional properties flow through as DSN parameters (charset, tls).
func mysqlConfig(params Params) *mysql.Config {
	config := mysql.NewConfig()
	config.User = params.Username
	config.Passwd = params.Password
	config.Net = "tcp"
	config.Addr = fmt.Sprintf("%s:%d", params.Host, params.Port)
	config.DBName = params.DatabaseName
	config.ParseTime = true

	if len(params.AdditionalProperties) > 0 {
		config.Params = make(map[string]string, len(params.AdditionalProperties))
		for key, value := range params.AdditionalProperties {
			config.Params[key] = value
		}
	}
	return config
}

// openMySQL dials a MySQL target and verifies it with a ping.
func openMySQL(context context.Context, params Params) (LiveConnection, error) {
	connector, err := mysql.NewConnector(mysqlConfig(params))
	if err != nil {
		return nil, apperr.Unreachable("Invalid MySQL coordinates", err)
	}

	database := sql.OpenDB(connector)
	database.SetMaxOpenConns(4)
	database.SetConnMaxIdleTime(5 * time.Minute)

	if err := database.PingContext(context); err != nil {
		_ = database.Close()
		return nil, apperr.Unreachable("MySQL target did not respond", err)
	}

	return &mysqlConnection{database: database}, nil
}

func (connection *mysqlConnection) Kind() DatabaseKind { return KindMySQL }

func (connection *mysqlConnection) Ping(context context.Context) error {
	if err := connection.database.PingContext(context); err != nil {
		return apperr.Unreachable("MySQL target did not respond", err)
	}
	return nil
}

func (connection *mysqlConnection) Execute(context context.Context, query string, maxRows int) (*QueryResult, error) {
	rows, err := connection.database.QueryContext(context, query)
	if err != nil {
		return nil, apperr.DriverError("MySQL rejected the query", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, apperr.DriverError("MySQL column metadata failed", err)
	}

	result := &QueryResult{Columns: columns, Rows: make([][]any, 0, maxRows)}
	for rows.Next() {
		if len(result.Rows) >= maxRows {
			result.Truncated = true
			break
		}

		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, apperr.DriverError("MySQL row decode failed", err)
		}

		// database/sql hands back []byte for text columns; normalize to string.
		for i, value := range values {
			if raw, ok := value.([]byte); ok {
				values[i] = string(raw)
			}
		}
		result.Rows = append(result.Rows, values)
	}

	if err := rows.Err(); err != nil && !result.Truncated {
		return nil, apperr.DriverError("MySQL result stream failed", err)
	}

	result.RowCount = len(result.Rows)
	return result, nil
}

// mysqlWalkQuery enumerates tables and columns for the connected database.
const mysqlWalkQuery = `
	SELECT table_name,
	       column_name,
	       data_type,
	       is_nullable = 'YES',
	       column_key = 'PRI'
	FROM information_schema.columns
	WHERE table_schema = DATABASE()
	ORDER BY table_name, ordinal_position`

// mysqlForeignKeyQuery enumerates foreign key edges for the connected database.
const mysqlForeignKeyQuery = `
	SELECT table_name, column_name, referenced_table_name, referenced_column_name
	FROM information_schema.key_column_usage
	WHERE table_schema = DATABASE()
	  AND referenced_table_name IS NOT NULL`

func (connection *mysqlConnection) WalkSchema(context context.Context) ([]SchemaTable, error) {
	rows, err := connection.database.QueryContext(context, mysqlWalkQuery)
	if err != nil {
		return nil, apperr.DriverError("MySQL schema walk failed", err)
	}
	defer rows.Close()

	index := map[string]*SchemaTable{}
	order := make([]string, 0)

	for rows.Next() {
		var tableName string
		var column SchemaColumn
		if err := rows.Scan(&tableName, &column.Name, &column.DataType, &column.Nullable, &column.IsPrimaryKey); err != nil {
			return nil, apperr.DriverError("MySQL schema row decode failed", err)
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
		return nil, apperr.DriverError("MySQL schema stream failed", err)
	}

	foreignKeys, err := connection.database.QueryContext(context, mysqlForeignKeyQuery)
	if err != nil {
		return nil, apperr.DriverError("MySQL foreign key walk failed", err)
	}
	defer foreignKeys.Close()

	for foreignKeys.Next() {
		var tableName string
		var edge ForeignKey
		if err := foreignKeys.Scan(&tableName, &edge.Column, &edge.ReferencedTable, &edge.ReferencedColumn); err != nil {
			return nil, apperr.DriverError("MySQL foreign key decode failed", err)
		}
		if table, ok := index[tableName]; ok {
			table.ForeignKeys = append(table.ForeignKeys, edge)
		}
	}
	if err := foreignKeys.Err(); err != nil {
		return nil, apperr.DriverError("MySQL foreign key stream failed", err)
	}

	tables := make([]SchemaTable, 0, len(order))
	for _, name := range order {
		tables = append(tables, *index[name])
	}
	return tables, nil
}

func (connection *mysqlConnection) Close(context context.Context) error {
	if err := connection.database.Close(); err != nil {
		return fmt.Errorf("mysql_driver_close_failed: %w", err)
	}
	return nil
}
