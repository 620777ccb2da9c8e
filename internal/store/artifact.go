package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/thrr87/hoard/internal/hoarderr"
)

// PutArtifact records a binary attachment. The blob itself lives on disk
// under the artifact store directory; this row is just the index entry.
func PutArtifact(ctx context.Context, q Queryer, a Artifact) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	var memoryID any
	if a.MemoryID != "" {
		memoryID = a.MemoryID
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO artifact (id, memory_id, mime_type, size_bytes, path, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.ID, memoryID, a.MimeType, a.SizeBytes, a.Path, a.CreatedAt.Unix())
	if err != nil {
		if isSQLiteConstraint(err) {
			return fmt.Errorf("%w: %v", hoarderr.ErrIntegrityViolation, err)
		}
		return fmt.Errorf("put artifact: %w", err)
	}
	return nil
}

// GetArtifact fetches an artifact row by id.
func GetArtifact(ctx context.Context, q Queryer, id string) (*Artifact, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, COALESCE(memory_id, ''), mime_type, size_bytes, path, created_at
		FROM artifact WHERE id = ?
	`, id)

	var a Artifact
	var createdAt int64
	err := row.Scan(&a.ID, &a.MemoryID, &a.MimeType, &a.SizeBytes, &a.Path, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, hoarderr.ErrNotFound
		}
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	a.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &a, nil
}
