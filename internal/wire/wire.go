// Package wire implements the client-facing cursor-based result protocol:
// every query reply is {rowType, rows[], hasMore}, with a cursor
// supporting batched fetchNext(batchSize) pulls over an adapter.RowStream.
package wire

import (
	"context"
	"fmt"

	"github.com/coredb-io/polystore/internal/adapter"
	"github.com/coredb-io/polystore/internal/catalog"
)

// RowType tags the shape of a Batch's rows: a routed scan against a
// document or graph entity carries different column semantics than a
// relational one, even though both ride the same cursor mechanics.
type RowType string

const (
	RowTypeRelational RowType = "RELATIONAL"
	RowTypeDocument   RowType = "DOCUMENT"
	RowTypeGraph      RowType = "GRAPH"
)

// Batch is one {rowType, rows[], hasMore} reply.
type Batch struct {
	RowType RowType                  `json:"rowType"`
	Rows    []map[string]interface{} `json:"rows"`
	HasMore bool                     `json:"hasMore"`
}

// Cursor adapts a RowStream (keyed by logical column id) into the wire
// format (keyed by column name), batch by batch.
type Cursor struct {
	stream   adapter.RowStream
	rowType  RowType
	colNames map[catalog.ID]string
	done     bool
}

// NewCursor returns a Cursor over stream, rendering rows with colNames.
func NewCursor(stream adapter.RowStream, rowType RowType, colNames map[catalog.ID]string) *Cursor {
	return &Cursor{stream: stream, rowType: rowType, colNames: colNames}
}

// FetchNext pulls up to batchSize rows. Once the underlying stream is
// exhausted, FetchNext keeps returning an empty batch with HasMore=false
// rather than erroring, so a client that polls past the end sees a
// stable terminal reply.
func (c *Cursor) FetchNext(ctx context.Context, batchSize int) (Batch, error) {
	if c.done {
		return Batch{RowType: c.rowType, HasMore: false}, nil
	}
	rows, ok, err := c.stream.Next(ctx, batchSize)
	if err != nil {
		return Batch{}, err
	}
	if !ok {
		c.done = true
	}
	out := make([]map[string]interface{}, 0, len(rows))
	for _, r := range rows {
		rendered := make(map[string]interface{}, len(r))
		for colID, v := range r {
			name := c.colNames[colID]
			if name == "" {
				name = fmt.Sprintf("col_%d", int64(colID))
			}
			rendered[name] = v
		}
		out = append(out, rendered)
	}
	return Batch{RowType: c.rowType, Rows: out, HasMore: !c.done}, nil
}

// Close releases the underlying stream.
func (c *Cursor) Close(ctx context.Context) error { return c.stream.Close(ctx) }
