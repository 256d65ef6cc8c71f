// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/datamira/internal/analysis/graph"
	"github.com/taibuivan/datamira/internal/analysis/vector"
	"github.com/taibuivan/datamira/internal/core/connection"
	"github.com/taibuivan/datamira/internal/platform/actor"
)

// # Description Rendering

/*
TestDescribe_Canonical renders the full table shape in walk order.
*/
func TestDescribe_Canonical(t *testing.T) {
	table := connection.SchemaTable{
		Name: "orders",
		Columns: []connection.SchemaColumn{
			{Name: "id", DataType: "uuid", IsPrimaryKey: true},
			{Name: "customer_id", DataType: "uuid", Nullable: false},
			{Name: "note", DataType: "text", Nullable: true},
		},
		ForeignKeys: []connection.ForeignKey{
			{Column: "customer_id", ReferencedTable: "customers", ReferencedColumn: "id"},
		},
	}

	expected := "Table: orders." +
		" Columns: id (uuid, primary key), customer_id (uuid, not null), note (text)." +
		" Relationships: customer_id references customers(id)."
	assert.Equal(t, expected, Describe(table))
}

/*
TestDescribe_Deterministic produces byte-identical text for the same input.
*/
func TestDescribe_Deterministic(t *testing.T) {
	table := connection.SchemaTable{
		Name:    "events",
		Columns: []connection.SchemaColumn{{Name: "id", DataType: "bigint", IsPrimaryKey: true}},
	}
	assert.Equal(t, Describe(table), Describe(table))
}

/*
TestDescribe_NormalizesComposition folds decomposed identifiers so the same
logical name cannot yield two descriptions.
*/
func TestDescribe_NormalizesComposition(t *testing.T) {
	composed := connection.SchemaTable{Name: "caf\u00e9"}
	decomposed := connection.SchemaTable{Name: "cafe\u0301"}
	assert.Equal(t, Describe(composed), Describe(decomposed))
	assert.Equal(t, PointID("c1", "caf\u00e9"), PointID("c1", "cafe\u0301"))
}

// # Ingestion Pipeline

// fakeEmbedding returns a constant vector, optionally failing on one text.
type fakeEmbedding struct {
	dimension int
	failOn    string
	calls     int
}

func (model *fakeEmbedding) Embed(_ context.Context, text string) ([]float32, error) {
	model.calls++
	if model.failOn != "" && containsTable(text, model.failOn) {
		return nil, errors.New("embedding backend down")
	}
	embedded := make([]float32, model.dimension)
	embedded[0] = 1
	return embedded, nil
}

func (model *fakeEmbedding) Dimension() int { return model.dimension }

func containsTable(description, table string) bool {
	return len(description) >= len("Table: "+table) && description[:len("Table: "+table)] == "Table: "+table
}

// ingestHarness runs a full analysis node against a scripted schema walk.
type ingestHarness struct {
	ingestor    *Ingestor
	vectorStore *vector.MemoryStore
	graphStore  *graph.MemoryStore
}

func newIngestHarness(t *testing.T, tables []connection.SchemaTable, embedding *fakeEmbedding) *ingestHarness {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	logger := slog.Default()

	pool := actor.NewPool(2, 16, logger)
	pool.Start(ctx)

	// Scripted connection manager: answers schema walks directly.
	managerMailbox, managerRef := actor.New[connection.Command]("connection-manager", 16)
	go actor.Run(ctx, managerMailbox, logger, func(command connection.Command) {
		if command.SchemaWalk != nil {
			command.SchemaWalk.ReplyTo.Deliver(tables, nil)
		}
	})

	vectorStore := vector.NewMemoryStore(embedding.dimension)
	vectorIndex := vector.NewIndex(vectorStore, logger)
	go vectorIndex.Run(ctx)

	graphStore := graph.NewMemoryStore()
	graphIndex := graph.NewIndex(graphStore, logger)
	go graphIndex.Run(ctx)

	ingestor := NewIngestor(managerRef, vectorIndex.Ref(), graphIndex.Ref(), embedding, pool, logger)
	go ingestor.Run(ctx)

	t.Cleanup(func() {
		cancel()
		pool.Wait()
	})

	return &ingestHarness{ingestor: ingestor, vectorStore: vectorStore, graphStore: graphStore}
}

func (harness *ingestHarness) ingest(t *testing.T, userID, connectionID string) (*Report, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return actor.Ask(ctx, harness.ingestor.Ref(), func(reply *actor.ReplyTo[*Report]) Command {
		return Command{Ingest: &IngestCommand{UserID: userID, ConnectionID: connectionID, ReplyTo: reply}}
	})
}

func walkFixture() []connection.SchemaTable {
	return []connection.SchemaTable{
		{
			Name:    "orders",
			Columns: []connection.SchemaColumn{{Name: "id", DataType: "uuid", IsPrimaryKey: true}},
			ForeignKeys: []connection.ForeignKey{
				{Column: "customer_id", ReferencedTable: "customers", ReferencedColumn: "id"},
			},
		},
		{
			Name:    "customers",
			Columns: []connection.SchemaColumn{{Name: "id", DataType: "uuid", IsPrimaryKey: true}},
		},
	}
}

/*
TestIngest_IndexesTablesAndEdges lands every table and foreign key.
*/
func TestIngest_IndexesTablesAndEdges(t *testing.T) {
	embedding := &fakeEmbedding{dimension: 4}
	harness := newIngestHarness(t, walkFixture(), embedding)

	report, err := harness.ingest(t, "u1", "c1")
	require.NoError(t, err)

	assert.Equal(t, 2, report.TablesIndexed)
	assert.Equal(t, 0, report.TablesSkipped)
	assert.Equal(t, 1, report.EdgesStored)
	assert.GreaterOrEqual(t, report.ProcessingMillis, int64(0))
	assert.Empty(t, report.Error)

	matches, err := harness.vectorStore.Search(context.Background(), []float32{1, 0, 0, 0}, vector.Filter{UserID: "u1"}, 10)
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	related, err := harness.graphStore.RelatedTables(context.Background(), "c1", "orders", 1)
	require.NoError(t, err)
	assert.Equal(t, []graph.Related{{Table: "customers", Distance: 1}}, related)
}

/*
TestIngest_Idempotent re-ingesting replaces points instead of duplicating.
*/
func TestIngest_Idempotent(t *testing.T) {
	embedding := &fakeEmbedding{dimension: 4}
	harness := newIngestHarness(t, walkFixture(), embedding)

	_, err := harness.ingest(t, "u1", "c1")
	require.NoError(t, err)
	_, err = harness.ingest(t, "u1", "c1")
	require.NoError(t, err)

	matches, err := harness.vectorStore.Search(context.Background(), []float32{1, 0, 0, 0}, vector.Filter{UserID: "u1"}, 10)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

/*
TestIngest_SkipsFailingTable keeps going when one embedding call fails.
*/
func TestIngest_SkipsFailingTable(t *testing.T) {
	embedding := &fakeEmbedding{dimension: 4, failOn: "orders"}
	harness := newIngestHarness(t, walkFixture(), embedding)

	report, err := harness.ingest(t, "u1", "c1")
	require.NoError(t, err)

	assert.Equal(t, 1, report.TablesIndexed)
	assert.Equal(t, 1, report.TablesSkipped)
	assert.Contains(t, report.Error, "orders")

	matches, err := harness.vectorStore.Search(context.Background(), []float32{1, 0, 0, 0}, vector.Filter{UserID: "u1"}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "customers", matches[0].Point.Payload.TableName)
}
