package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/veyselaydin/gamehouse/internal/domain"
)

// archiveBatch caps how many rows one archive pass moves, keeping the
// upload and the delete transaction bounded.
const archiveBatch = 5000

// Archiver implements domain.Archiver: terminal rounds and the financial
// trail past retention are serialized to JSONL, uploaded to object storage,
// and then removed from the primary store. The delete only runs after the
// upload succeeded.
type Archiver struct {
	writer domain.BlobWriter
	store  domain.Store
	logger *slog.Logger
}

// NewArchiver creates an Archiver over the given writer and store.
func NewArchiver(writer domain.BlobWriter, store domain.Store, logger *slog.Logger) *Archiver {
	return &Archiver{writer: writer, store: store, logger: logger}
}

var _ domain.Archiver = (*Archiver)(nil)

// ArchiveRounds moves terminal rounds completed before the cutoff to cold
// storage and returns the number archived.
func (a *Archiver) ArchiveRounds(ctx context.Context, before time.Time) (int64, error) {
	rounds, err := a.store.Rounds().ListCompletedBefore(ctx, before, archiveBatch)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive rounds query: %w", err)
	}
	if len(rounds) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(rounds)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive rounds marshal: %w", err)
	}
	path := archivePath("rounds", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive rounds upload: %w", err)
	}

	ids := make([]string, len(rounds))
	for i, r := range rounds {
		ids[i] = r.ID
	}
	if err := a.store.Rounds().DeleteBatch(ctx, ids); err != nil {
		return 0, fmt.Errorf("s3blob: archive rounds delete: %w", err)
	}

	a.logger.InfoContext(ctx, "s3blob: rounds archived",
		slog.String("path", path),
		slog.Int("count", len(rounds)),
	)
	return int64(len(rounds)), nil
}

// ArchiveLedger moves ledger entries created before the cutoff to cold
// storage and returns the number archived.
func (a *Archiver) ArchiveLedger(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.store.Ledger().ListBefore(ctx, before, archiveBatch)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive ledger query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive ledger marshal: %w", err)
	}
	path := archivePath("ledger", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive ledger upload: %w", err)
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	if err := a.store.Ledger().DeleteBatch(ctx, ids); err != nil {
		return 0, fmt.Errorf("s3blob: archive ledger delete: %w", err)
	}

	a.logger.InfoContext(ctx, "s3blob: ledger archived",
		slog.String("path", path),
		slog.Int("count", len(entries)),
	)
	return int64(len(entries)), nil
}

// ArchiveSnapshots moves balance snapshots created before the cutoff to
// cold storage and returns the number archived.
func (a *Archiver) ArchiveSnapshots(ctx context.Context, before time.Time) (int64, error) {
	snaps, err := a.store.Snapshots().ListBefore(ctx, before, archiveBatch)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots query: %w", err)
	}
	if len(snaps) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(snaps)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots marshal: %w", err)
	}
	path := archivePath("snapshots", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots upload: %w", err)
	}

	ids := make([]string, len(snaps))
	for i, s := range snaps {
		ids[i] = s.ID
	}
	if err := a.store.Snapshots().DeleteBatch(ctx, ids); err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots delete: %w", err)
	}

	a.logger.InfoContext(ctx, "s3blob: snapshots archived",
		slog.String("path", path),
		slog.Int("count", len(snaps)),
	)
	return int64(len(snaps)), nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff:
//
//	archive/rounds/2026-08.jsonl
//	archive/ledger/2026-08.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
