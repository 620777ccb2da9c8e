package dispatch

import (
	"context"

	"github.com/google/uuid"

	"github.com/thrr87/hoard/internal/store"
)

func init() {
	register("artifact_put", ToolWrite, artifactPut)
	register("artifact_get", ToolRead, artifactGet)
}

// artifactPut indexes a blob already written to disk by the caller: the
// params carry its path, MIME type and size. Neither this tool nor the RPC
// transport reads or writes the blob's bytes.
func artifactPut(ctx context.Context, q store.Queryer, env *Env, params map[string]any) (any, error) {
	path, err := stringParam(params, "path")
	if err != nil {
		return nil, err
	}
	mimeType, err := stringParam(params, "mime_type")
	if err != nil {
		return nil, err
	}
	sizeBytes, err := intParam(params, "size_bytes")
	if err != nil {
		return nil, err
	}

	a := store.Artifact{
		ID:        uuid.NewString(),
		MemoryID:  optionalStringParam(params, "memory_id"),
		MimeType:  mimeType,
		SizeBytes: int64(sizeBytes),
		Path:      path,
	}
	if err := store.PutArtifact(ctx, q, a); err != nil {
		return nil, err
	}
	return map[string]any{"id": a.ID}, nil
}

func artifactGet(ctx context.Context, q store.Queryer, env *Env, params map[string]any) (any, error) {
	id, err := stringParam(params, "id")
	if err != nil {
		return nil, err
	}
	return store.GetArtifact(ctx, q, id)
}
