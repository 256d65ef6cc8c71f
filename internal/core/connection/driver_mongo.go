// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package connection

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/taibuivan/datamira/internal/platform/apperr"
)

// # MongoDB Driver

// mongoConnection implements [LiveConnection] over the official driver.
//
// Queries for this engine are extended-JSON command documents (find,
// aggregate, count) rather than SQL text.
type mongoConnection struct {
	client       *mongo.Client
	databaseName string
}

// mongoURI renders the connection coordinates as a driver URI. The auth
// source defaults to admin; additional properties override or extend the
// option set (authSource, replicaSet, tls).
func mongoURI(params Params) string {
	query := url.Values{}
	query.Set("authSource", "admin")
	for key, value := range params.AdditionalProperties {
		query.Set(key, value)
	}

	return fmt.Sprintf("mongodb://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(params.Username), url.QueryEscape(params.Password),
		params.Host, params.Port, url.PathEscape(params.DatabaseName),
		query.Encode())
}

// openMongo dials a MongoDB target and verifies it with a ping.
func openMongo(context context.Context, params Params) (LiveConnection, error) {
	client, err := mongo.Connect(context, options.Client().ApplyURI(mongoURI(params)).SetMaxPoolSize(4))
	if err != nil {
		return nil, apperr.Unreachable("Could not open MongoDB client", err)
	}

	if err := client.Ping(context, readpref.Primary()); err != nil {
		_ = client.Disconnect(context)
		return nil, apperr.Unreachable("MongoDB target did not respond", err)
	}

	return &mongoConnection{client: client, databaseName: params.DatabaseName}, nil
}

func (connection *mongoConnection) Kind() DatabaseKind { return KindMongoDB }

func (connection *mongoConnection) Ping(context context.Context) error {
	if err := connection.client.Ping(context, readpref.Primary()); err != nil {
		return apperr.Unreachable("MongoDB target did not respond", err)
	}
	return nil
}

func (connection *mongoConnection) Execute(context context.Context, query string, maxRows int) (*QueryResult, error) {
	var command bson.D
	if err := bson.UnmarshalExtJSON([]byte(query), true, &command); err != nil {
		return nil, apperr.DriverError("MongoDB command is not valid extended JSON", err)
	}

	database := connection.client.Database(connection.databaseName)
	cursor, err := database.RunCommandCursor(context, command)
	if err != nil {
		return nil, apperr.DriverError("MongoDB rejected the command", err)
	}
	defer cursor.Close(context)

	// Column order follows first appearance across returned documents.
	columnIndex := map[string]int{}
	columns := make([]string, 0)
	documents := make([]bson.D, 0, maxRows)
	truncated := false

	for cursor.Next(context) {
		if len(documents) >= maxRows {
			truncated = true
			break
		}
		var document bson.D
		if err := cursor.Decode(&document); err != nil {
			return nil, apperr.DriverError("MongoDB document decode failed", err)
		}
		for _, element := range document {
			if _, ok := columnIndex[element.Key]; !ok {
				columnIndex[element.Key] = len(columns)
				columns = append(columns, element.Key)
			}
		}
		documents = append(documents, document)
	}
	if err := cursor.Err(); err != nil && !truncated {
		return nil, apperr.DriverError("MongoDB cursor stream failed", err)
	}

	result := &QueryResult{Columns: columns, Rows: make([][]any, 0, len(documents)), Truncated: truncated}
	for _, document := range documents {
		row := make([]any, len(columns))
		for _, element := range document {
			row[columnIndex[element.Key]] = element.Value
		}
		result.Rows = append(result.Rows, row)
	}

	result.RowCount = len(result.Rows)
	return result, nil
}

func (connection *mongoConnection) WalkSchema(context context.Context) ([]SchemaTable, error) {
	database := connection.client.Database(connection.databaseName)

	names, err := database.ListCollectionNames(context, bson.D{})
	if err != nil {
		return nil, apperr.DriverError("MongoDB collection listing failed", err)
	}

	tables := make([]SchemaTable, 0, len(names))
	for _, name := range names {
		table := SchemaTable{Name: name}

		// Field structure is inferred from one sampled document. Documents
		// are schemaless; absent fields are simply unknown.
		var sample bson.D
		err := database.Collection(name).FindOne(context, bson.D{}).Decode(&sample)
		if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.DriverError("MongoDB sampling failed for "+name, err)
		}

		for _, element := range sample {
			table.Columns = append(table.Columns, SchemaColumn{
				Name:         element.Key,
				DataType:     fmt.Sprintf("%T", element.Value),
				Nullable:     true,
				IsPrimaryKey: element.Key == "_id",
			})
		}

		tables = append(tables, table)
	}

	return tables, nil
}

func (connection *mongoConnection) Close(context context.Context) error {
	if err := connection.client.Disconnect(context); err != nil {
		return fmt.Errorf("mongo_driver_close_failed: %w", err)
	}
	return nil
}
