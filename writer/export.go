// Package writer exports per-tick evaluation records as parquet files for
// offline analysis of backtest runs, optionally mirroring them to S3.
package writer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	appconfig "triflow/config"
	"triflow/logger"
	"triflow/models"
)

// TickParquetRecord is the flat parquet row for one evaluation. The snapshot
// is carried as a JSON column since its pair set varies per triangle.
type TickParquetRecord struct {
	Triangle      string  `parquet:"name=triangle, type=BYTE_ARRAY, convertedtype=UTF8"`
	EvaluatedAt   int64   `parquet:"name=evaluated_at, type=INT64"`
	Direction     string  `parquet:"name=direction, type=BYTE_ARRAY, convertedtype=UTF8"`
	ProfitForward float64 `parquet:"name=profit_forward, type=DOUBLE"`
	ProfitReverse float64 `parquet:"name=profit_reverse, type=DOUBLE"`
	RawForward    float64 `parquet:"name=raw_forward, type=DOUBLE"`
	RawReverse    float64 `parquet:"name=raw_reverse, type=DOUBLE"`
	SelectedRate  float64 `parquet:"name=selected_rate, type=DOUBLE"`
	Volatility    float64 `parquet:"name=volatility, type=DOUBLE"`
	Slippage      float64 `parquet:"name=slippage, type=DOUBLE"`
	Trend         string  `parquet:"name=trend, type=BYTE_ARRAY, convertedtype=UTF8"`
	Threshold     float64 `parquet:"name=threshold, type=DOUBLE"`
	Accepted      bool    `parquet:"name=accepted, type=BOOLEAN"`
	Skip          string  `parquet:"name=skip, type=BYTE_ARRAY, convertedtype=UTF8"`
	Snapshot      string  `parquet:"name=snapshot, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// memoryFileWriter implements the ParquetFile interface for in-memory writing.
type memoryFileWriter struct {
	buffer *bytes.Buffer
}

func newMemoryFileWriter() *memoryFileWriter {
	return &memoryFileWriter{buffer: &bytes.Buffer{}}
}

func (mfw *memoryFileWriter) Create(name string) (source.ParquetFile, error) {
	return mfw, nil
}

func (mfw *memoryFileWriter) Open(name string) (source.ParquetFile, error) {
	return mfw, nil
}

func (mfw *memoryFileWriter) Seek(offset int64, whence int) (int64, error) {
	return int64(mfw.buffer.Len()), nil
}

func (mfw *memoryFileWriter) Read(b []byte) (int, error) {
	return mfw.buffer.Read(b)
}

func (mfw *memoryFileWriter) Write(b []byte) (int, error) {
	return mfw.buffer.Write(b)
}

func (mfw *memoryFileWriter) Close() error {
	return nil
}

func (mfw *memoryFileWriter) Bytes() []byte {
	return mfw.buffer.Bytes()
}

// Uploader pushes a finished export file to remote storage. The S3 uploader
// implements it; tests substitute their own.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte) error
}

// Exporter buffers tick records and writes them out as a single parquet file
// per Flush. It satisfies the engine's Recorder interface.
type Exporter struct {
	config   appconfig.ExportConfig
	uploader Uploader
	mu       sync.Mutex
	records  []models.TickRecord
	log      *logger.Log
}

func NewExporter(cfg appconfig.ExportConfig) (*Exporter, error) {
	e := &Exporter{
		config: cfg,
		log:    logger.GetLogger(),
	}

	if cfg.S3.Enabled {
		uploader, err := newS3Uploader(cfg.S3)
		if err != nil {
			return nil, err
		}
		e.uploader = uploader
	}
	return e, nil
}

// SetUploader overrides the remote sink, mainly for tests.
func (e *Exporter) SetUploader(u Uploader) { e.uploader = u }

// Record buffers one evaluation row. Safe for concurrent use.
func (e *Exporter) Record(rec models.TickRecord) {
	e.mu.Lock()
	e.records = append(e.records, rec)
	e.mu.Unlock()
}

// Len reports the number of buffered records.
func (e *Exporter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.records)
}

// Flush writes all buffered records to a parquet file under the configured
// directory and clears the buffer. With S3 enabled the file is uploaded as
// well. Flushing an empty buffer is a no-op.
func (e *Exporter) Flush(ctx context.Context) (string, error) {
	e.mu.Lock()
	records := e.records
	e.records = nil
	e.mu.Unlock()

	if len(records) == 0 {
		return "", nil
	}

	batchID := uuid.New().String()
	log := e.log.WithComponent("export").WithFields(logger.Fields{
		"batch_id":     batchID,
		"record_count": len(records),
	})

	data, err := e.createParquetFile(records)
	if err != nil {
		log.WithError(err).Error("failed to create parquet file")
		return "", err
	}

	filename := fmt.Sprintf("ticks_%s_%s.parquet",
		time.Now().UTC().Format("20060102150405"), batchID)

	if err := os.MkdirAll(e.config.Directory, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(e.config.Directory, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	log.WithFields(logger.Fields{
		"path":      path,
		"file_size": len(data),
	}).Info("export file written")

	if e.uploader != nil {
		key := filepath.ToSlash(filepath.Join(e.config.S3.Prefix, filename))
		if err := e.uploader.Upload(ctx, key, data); err != nil {
			log.WithError(err).WithFields(logger.Fields{"s3_key": key}).
				Error("failed to upload export file")
			return path, err
		}
		log.WithFields(logger.Fields{"s3_key": key}).Info("export file uploaded")
	}
	return path, nil
}

func (e *Exporter) createParquetFile(records []models.TickRecord) ([]byte, error) {
	fw := newMemoryFileWriter()

	pw, err := writer.NewParquetWriter(fw, new(TickParquetRecord), 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	switch e.config.Compression {
	case "snappy":
		pw.CompressionType = parquet.CompressionCodec_SNAPPY
	case "gzip":
		pw.CompressionType = parquet.CompressionCodec_GZIP
	case "lzo":
		pw.CompressionType = parquet.CompressionCodec_LZO
	default:
		pw.CompressionType = parquet.CompressionCodec_UNCOMPRESSED
	}

	for _, rec := range records {
		row, err := toParquetRecord(rec)
		if err != nil {
			pw.WriteStop()
			return nil, err
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet writing: %w", err)
	}
	return fw.Bytes(), nil
}

func toParquetRecord(rec models.TickRecord) (TickParquetRecord, error) {
	snapshot, err := json.Marshal(rec.Snapshot)
	if err != nil {
		return TickParquetRecord{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return TickParquetRecord{
		Triangle:      rec.Triangle,
		EvaluatedAt:   rec.EvaluatedAt.UnixMilli(),
		Direction:     string(rec.Direction),
		ProfitForward: rec.ProfitForward,
		ProfitReverse: rec.ProfitReverse,
		RawForward:    rec.RawForward,
		RawReverse:    rec.RawReverse,
		SelectedRate:  rec.SelectedRate,
		Volatility:    rec.Volatility,
		Slippage:      rec.Slippage,
		Trend:         string(rec.Trend),
		Threshold:     rec.Threshold,
		Accepted:      rec.Accepted,
		Skip:          string(rec.Skip),
		Snapshot:      string(snapshot),
	}, nil
}
