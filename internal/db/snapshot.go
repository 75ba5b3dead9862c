package db

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/sunny-dsa/shiftcheck/pkg/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SnapshotVersion is written in the meta record of every snapshot.
const SnapshotVersion = 1

// EnableAutoSnapshot sets up a hook that automatically exports a snapshot
// to the given path after every successful write operation.
func (db *DB) EnableAutoSnapshot(path string) {
	db.SetOnChange(func(ctx context.Context) {
		// Best effort: a failed export must not fail the write that triggered it.
		_ = db.ExportSnapshot(ctx, path)
	})
}

// ExportSnapshot writes the audit snapshot to the given path atomically using
// a temporary file.
func (db *DB) ExportSnapshot(ctx context.Context, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "snapshot-*.jsonl")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempFile.Name())
		}
	}()

	if err := db.WriteSnapshot(ctx, tempFile); err != nil {
		return err
	}

	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	filename := tempFile.Name()
	tempFile = nil // Prevent defer from removing it

	if err := os.Rename(filename, path); err != nil {
		os.Remove(filename)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// WriteSnapshot streams one JSON object per line: a meta record followed by
// stores, actors, templates, task instances, photos and transfers. Each line
// carries a record_type field.
func (db *DB) WriteSnapshot(ctx context.Context, w io.Writer) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)

	write := func(recordType string, v any) error {
		// Embedding promotes the record's own fields next to record_type.
		var line any
		switch r := v.(type) {
		case *models.Store:
			line = struct {
				RecordType string `json:"record_type"`
				*models.Store
			}{recordType, r}
		case *models.Actor:
			line = struct {
				RecordType string `json:"record_type"`
				*models.Actor
			}{recordType, r}
		case *models.Template:
			line = struct {
				RecordType string `json:"record_type"`
				*models.Template
			}{recordType, r}
		case *models.TaskInstance:
			line = struct {
				RecordType string `json:"record_type"`
				*models.TaskInstance
			}{recordType, r}
		case *models.PhotoAttachment:
			line = struct {
				RecordType string `json:"record_type"`
				*models.PhotoAttachment
			}{recordType, r}
		case *models.TransferRecord:
			line = struct {
				RecordType string `json:"record_type"`
				*models.TransferRecord
			}{recordType, r}
		default:
			line = v
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("failed to write snapshot line: %w", err)
		}
		return nil
	}

	meta := map[string]any{
		"record_type": "meta",
		"version":     SnapshotVersion,
		"exported_at": formatTime(db.clock()),
	}
	if err := write("meta", meta); err != nil {
		return err
	}

	stores, err := db.ListStores(ctx)
	if err != nil {
		return err
	}
	for _, s := range stores {
		if err := write("store", s); err != nil {
			return err
		}
	}

	actors, err := db.ListActors(ctx)
	if err != nil {
		return err
	}
	for _, a := range actors {
		if err := write("actor", a); err != nil {
			return err
		}
	}

	templates, err := db.ListTemplates(ctx)
	if err != nil {
		return err
	}
	for _, t := range templates {
		if err := write("template", t); err != nil {
			return err
		}
	}

	instances, err := db.ListInstances(ctx, InstanceFilter{})
	if err != nil {
		return err
	}
	for _, inst := range instances {
		if err := write("task", inst); err != nil {
			return err
		}
	}

	for _, inst := range instances {
		photos, err := db.ListPhotos(ctx, inst.ID)
		if err != nil {
			return err
		}
		for _, p := range photos {
			if err := write("photo", p); err != nil {
				return err
			}
		}

		transfers, err := db.ListTransfers(ctx, inst.ID)
		if err != nil {
			return err
		}
		for _, r := range transfers {
			if err := write("transfer", r); err != nil {
				return err
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush snapshot: %w", err)
	}
	return nil
}
