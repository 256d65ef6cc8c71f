// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package schema turns walked database schemas into indexed knowledge.

The ingestor snapshots a live connection's tables, renders each table into a
stable natural-language description, embeds it into the vector index, and
loads its foreign keys into the graph index. Descriptions are deterministic:
the same schema always produces byte-identical text, so re-ingestion replaces
points instead of multiplying them.
*/
package schema

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/taibuivan/datamira/internal/core/connection"
)

// # Description Rendering

/*
Describe renders one table into its canonical description text.

Description: Column order follows the walk order (ordinal position), so the
text is stable across runs. Output is NFC-normalized so differently composed
identifiers from the target database cannot produce distinct descriptions of
the same table.

Parameters:
  - table: connection.SchemaTable

Returns:
  - string: Canonical description
*/
func Describe(table connection.SchemaTable) string {
	var builder strings.Builder

	builder.WriteString("Table: ")
	builder.WriteString(table.Name)
	builder.WriteString(".")

	if len(table.Columns) > 0 {
		builder.WriteString(" Columns: ")
		for i, column := range table.Columns {
			if i > 0 {
				builder.WriteString(", ")
			}
			builder.WriteString(describeColumn(column))
		}
		builder.WriteString(".")
	}

	if len(table.ForeignKeys) > 0 {
		builder.WriteString(" Relationships: ")
		for i, edge := range table.ForeignKeys {
			if i > 0 {
				builder.WriteString(", ")
			}
			builder.WriteString(fmt.Sprintf("%s references %s(%s)",
				edge.Column, edge.ReferencedTable, edge.ReferencedColumn))
		}
		builder.WriteString(".")
	}

	return norm.NFC.String(builder.String())
}

// describeColumn renders one column with its qualifiers.
func describeColumn(column connection.SchemaColumn) string {
	qualifiers := make([]string, 0, 2)
	qualifiers = append(qualifiers, column.DataType)
	if column.IsPrimaryKey {
		qualifiers = append(qualifiers, "primary key")
	}
	if !column.Nullable && !column.IsPrimaryKey {
		qualifiers = append(qualifiers, "not null")
	}
	return fmt.Sprintf("%s (%s)", column.Name, strings.Join(qualifiers, ", "))
}

// PointID derives the deterministic vector point ID for a table, so
// re-ingestion replaces the point in place.
func PointID(connectionID, tableName string) string {
	return connectionID + ":" + norm.NFC.String(tableName)
}
