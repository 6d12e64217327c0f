// Package export writes simulation runs as long-format Arrow IPC streams,
// one row per study or recall event.
package export

import (
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/nvandessel/narrative-recall/internal/simulation"
)

// RecallEvent is one row of the exported table.
type RecallEvent struct {
	RunID    string
	Scenario string
	Model    string
	Type     string
	Position int
	Item     int
}

// Schema is the column layout of exported tables.
var Schema = arrow.NewSchema([]arrow.Field{
	{Name: "run_id", Type: arrow.BinaryTypes.String},
	{Name: "scenario", Type: arrow.BinaryTypes.String},
	{Name: "model", Type: arrow.BinaryTypes.String},
	{Name: "type", Type: arrow.BinaryTypes.String},
	{Name: "position", Type: arrow.PrimitiveTypes.Int32},
	{Name: "item", Type: arrow.PrimitiveTypes.Int32},
}, nil)

// Events flattens results into table rows, run by run.
func Events(results []*simulation.Result) []RecallEvent {
	var rows []RecallEvent
	for _, res := range results {
		for _, ev := range res.SerialEvents() {
			rows = append(rows, RecallEvent{
				RunID:    res.RunID,
				Scenario: res.Scenario,
				Model:    string(res.Model),
				Type:     ev.Type,
				Position: ev.Position,
				Item:     ev.Item,
			})
		}
	}
	return rows
}

// WriteRecallEvents writes one record batch per run to w as an Arrow IPC
// stream.
func WriteRecallEvents(w io.Writer, results []*simulation.Result) error {
	mem := memory.NewGoAllocator()
	writer := ipc.NewWriter(w, ipc.WithSchema(Schema), ipc.WithAllocator(mem))

	b := array.NewRecordBuilder(mem, Schema)
	defer b.Release()

	for _, res := range results {
		for _, row := range Events([]*simulation.Result{res}) {
			b.Field(0).(*array.StringBuilder).Append(row.RunID)
			b.Field(1).(*array.StringBuilder).Append(row.Scenario)
			b.Field(2).(*array.StringBuilder).Append(row.Model)
			b.Field(3).(*array.StringBuilder).Append(row.Type)
			b.Field(4).(*array.Int32Builder).Append(int32(row.Position))
			b.Field(5).(*array.Int32Builder).Append(int32(row.Item))
		}
		rec := b.NewRecord()
		err := writer.Write(rec)
		rec.Release()
		if err != nil {
			writer.Close()
			return fmt.Errorf("writing run %s: %w", res.RunID, err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing arrow stream: %w", err)
	}
	return nil
}

// ReadRecallEvents reads every row of an Arrow IPC stream written by
// WriteRecallEvents.
func ReadRecallEvents(r io.Reader) ([]RecallEvent, error) {
	reader, err := ipc.NewReader(r, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, fmt.Errorf("opening arrow stream: %w", err)
	}
	defer reader.Release()

	if !reader.Schema().Equal(Schema) {
		return nil, fmt.Errorf("unexpected schema: %s", reader.Schema())
	}

	var rows []RecallEvent
	for reader.Next() {
		rec := reader.Record()
		runIDs := rec.Column(0).(*array.String)
		scenarios := rec.Column(1).(*array.String)
		models := rec.Column(2).(*array.String)
		types := rec.Column(3).(*array.String)
		positions := rec.Column(4).(*array.Int32)
		items := rec.Column(5).(*array.Int32)
		for i := 0; i < int(rec.NumRows()); i++ {
			rows = append(rows, RecallEvent{
				RunID:    runIDs.Value(i),
				Scenario: scenarios.Value(i),
				Model:    models.Value(i),
				Type:     types.Value(i),
				Position: int(positions.Value(i)),
				Item:     int(items.Value(i)),
			})
		}
	}
	if err := reader.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading arrow stream: %w", err)
	}
	return rows, nil
}

// WriteFile writes results to path, replacing any existing file.
func WriteFile(path string, results []*simulation.Result) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := WriteRecallEvents(f, results); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile reads every row of the Arrow stream at path.
func ReadFile(path string) ([]RecallEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return ReadRecallEvents(f)
}
