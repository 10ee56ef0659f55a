package index

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/marketnotes/internal/apperr"
	"github.com/starford/marketnotes/internal/models"
)

// UpsertDataset records a snapshot. A later fetch to the same path replaces
// the previous row, mirroring the file being overwritten on disk.
func (db *DB) UpsertDataset(d models.Dataset) error {
	_, err := db.conn.Exec(`
		INSERT INTO datasets (id, path, source, query, checksum, size, status_code, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			id          = excluded.id,
			source      = excluded.source,
			query       = excluded.query,
			checksum    = excluded.checksum,
			size        = excluded.size,
			status_code = excluded.status_code,
			fetched_at  = excluded.fetched_at
	`, d.ID, d.Path, d.Source, d.Query, d.Checksum, d.Size, d.StatusCode, d.FetchedAt.UTC())
	if err != nil {
		return fmt.Errorf("index: upsert dataset: %w", err)
	}
	return nil
}

// GetDataset returns the catalog row for path or apperr.ErrNotFound.
func (db *DB) GetDataset(path string) (*models.Dataset, error) {
	row := db.conn.QueryRow(`
		SELECT id, path, source, query, checksum, size, status_code, fetched_at
		FROM datasets WHERE path = ?`, path)
	d, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get dataset: %w", err)
	}
	return d, nil
}

// ListDatasets returns catalog rows, newest first. An empty source lists all.
func (db *DB) ListDatasets(source string) ([]models.Dataset, error) {
	query := `SELECT id, path, source, query, checksum, size, status_code, fetched_at FROM datasets`
	var args []any
	if source != "" {
		query += ` WHERE source = ?`
		args = append(args, source)
	}
	query += ` ORDER BY fetched_at DESC, path ASC`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: list datasets: %w", err)
	}
	defer rows.Close()

	out := []models.Dataset{}
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func scanDataset(s rowScanner) (*models.Dataset, error) {
	var d models.Dataset
	if err := s.Scan(&d.ID, &d.Path, &d.Source, &d.Query, &d.Checksum, &d.Size, &d.StatusCode, &d.FetchedAt); err != nil {
		return nil, err
	}
	return &d, nil
}
