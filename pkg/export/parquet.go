// Package export renders a segmented table into the download formats the
// dashboard offers: an XLSX report workbook and a Parquet archive.
package export

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/hydroview/hydroview/internal/model"
)

const parquetBatchSize = 8192

// segmentSchema returns the Arrow schema of the segmented table.
func segmentSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "timestamp", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
		{Name: "category", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "date", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "hour", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
		{Name: "duration_minutes", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	}, nil)
}

// WriteParquet writes the segmented table as a Snappy-compressed Parquet
// file. Timestamps are stored as Unix nanoseconds.
func WriteParquet(w io.Writer, table []model.SegmentedEvent) (err error) {
	allocator := memory.NewGoAllocator()
	schema := segmentSchema()

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithDictionaryDefault(true),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	writer, err := pqarrow.NewFileWriter(schema, w, writerProps, arrowProps)
	if err != nil {
		return fmt.Errorf("export: failed to create parquet writer: %w", err)
	}
	defer func() {
		if cerr := writer.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("export: failed to close parquet writer: %w", cerr)
		}
	}()

	tsBuilder := array.NewInt64Builder(allocator)
	catBuilder := array.NewStringBuilder(allocator)
	dateBuilder := array.NewStringBuilder(allocator)
	hourBuilder := array.NewInt32Builder(allocator)
	durBuilder := array.NewFloat64Builder(allocator)
	defer tsBuilder.Release()
	defer catBuilder.Release()
	defer dateBuilder.Release()
	defer hourBuilder.Release()
	defer durBuilder.Release()

	flush := func(n int) error {
		tsArr := tsBuilder.NewArray()
		catArr := catBuilder.NewArray()
		dateArr := dateBuilder.NewArray()
		hourArr := hourBuilder.NewArray()
		durArr := durBuilder.NewArray()
		defer tsArr.Release()
		defer catArr.Release()
		defer dateArr.Release()
		defer hourArr.Release()
		defer durArr.Release()

		batch := array.NewRecord(schema, []arrow.Array{tsArr, catArr, dateArr, hourArr, durArr}, int64(n))
		defer batch.Release()

		if err := writer.Write(batch); err != nil {
			return fmt.Errorf("export: failed to write record batch: %w", err)
		}
		return nil
	}

	pending := 0
	for _, row := range table {
		tsBuilder.Append(row.Timestamp.UnixNano())
		catBuilder.Append(string(row.Category))
		dateBuilder.Append(row.Date.String())
		hourBuilder.Append(int32(row.Hour))
		durBuilder.Append(row.DurationMinutes)
		pending++

		if pending >= parquetBatchSize {
			if err := flush(pending); err != nil {
				return err
			}
			pending = 0
		}
	}
	if pending > 0 {
		if err := flush(pending); err != nil {
			return err
		}
	}
	return nil
}
