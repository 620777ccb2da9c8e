// Package syncpipeline implements the Sync Singleton File Lock and the
// thin in-process entry point an external connector uses to feed records
// into hoard. The ingestion pipeline itself (filesystem walkers, parsers,
// chunkers) is out of scope — named only where the core exposes an
// interface to it — so this package is deliberately narrow: a Connector
// interface, a singleton guard around one sync run, and a loop that
// submits each pulled record through the Write Coordinator the same way
// any other write tool does.
//
// Grounded on internal/lockfile for the exclusive-create guard (§4.3's
// Server Singleton Lock reused at a second, independent path) and on
// SPEC_FULL.md §9's own design note: background sync never acquires the
// Database Write Lock itself, since the coordinator it submits through
// already does that per transaction, and a second acquisition attempt
// from the same process would self-contend.
package syncpipeline

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/thrr87/hoard/internal/coordinator"
	"github.com/thrr87/hoard/internal/lockfile"
	"github.com/thrr87/hoard/internal/log"
	"github.com/thrr87/hoard/internal/store"
)

// Record is one memory an external connector wants written. It mirrors the
// subset of store.Memory an ingestion source can reasonably supply.
type Record struct {
	Scope      string
	Slot       string
	OwnerAgent string
	Content    string
	Embedding  []float32
}

// Connector pulls a batch of records from whatever external system it
// wraps. The pipeline does not know or care what that system is.
type Connector interface {
	Pull(ctx context.Context) ([]Record, error)
}

// Pipeline is the Sync Singleton File Lock's holder. Build one with New per
// database; Run is safe to call repeatedly, including from multiple
// processes, since the lock makes concurrent runs a no-op rather than a
// race.
type Pipeline struct {
	sub      coordinator.Submitter
	lockPath string
}

// New builds a Pipeline over sub, guarded by the Sync Singleton File Lock
// at dbPath+".sync.lock" (a sibling of the Database Write Lock and Server
// Singleton Lock files, per the on-disk layout in SPEC_FULL.md §6).
func New(sub coordinator.Submitter, dbPath string) *Pipeline {
	return &Pipeline{sub: sub, lockPath: dbPath + ".sync.lock"}
}

// Run acquires the Sync Singleton File Lock, pulls one batch from conn, and
// submits each record as its own write through the coordinator. If another
// sync run already holds the lock, Run returns (0, nil) immediately rather
// than blocking or erroring — a concurrent sync attempt is expected
// operational noise (e.g. a cron-triggered connector overlapping a
// still-running previous invocation), not a failure.
func (p *Pipeline) Run(ctx context.Context, conn Connector) (int, error) {
	logger := log.Component("syncpipeline")

	lock, err := lockfile.TryAcquire(p.lockPath)
	if err != nil {
		if errors.Is(err, lockfile.ErrHeld) {
			logger.Debug().Msg("sync already running elsewhere, skipping")
			return 0, nil
		}
		return 0, fmt.Errorf("syncpipeline: acquire sync lock: %w", err)
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			logger.Warn().Err(unlockErr).Msg("release sync lock failed")
		}
	}()

	records, err := conn.Pull(ctx)
	if err != nil {
		return 0, fmt.Errorf("syncpipeline: pull: %w", err)
	}

	for _, r := range records {
		_, err := p.sub.Submit(ctx, func(ctx context.Context, tx *sql.Tx) (any, error) {
			m := store.Memory{
				ID:         uuid.NewString(),
				Scope:      r.Scope,
				Slot:       r.Slot,
				OwnerAgent: r.OwnerAgent,
				Content:    r.Content,
				Embedding:  r.Embedding,
			}
			return nil, store.PutMemory(ctx, tx, m)
		})
		if err != nil {
			return 0, fmt.Errorf("syncpipeline: write record %s/%s: %w", r.Scope, r.Slot, err)
		}
	}

	logger.Info().Int("records", len(records)).Msg("sync run complete")
	return len(records), nil
}

// jsonRecord is the wire shape JSONLinesConnector decodes, kept separate
// from Record so the pipeline's internal type doesn't leak json tags.
type jsonRecord struct {
	Scope      string    `json:"scope"`
	Slot       string    `json:"slot"`
	OwnerAgent string    `json:"owner_agent"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// JSONLinesConnector reads one JSON-encoded Record per line from r. It's
// the minimal concrete Connector hoard ships: a stand-in for whatever real
// ingestion pipeline an operator wires up, useful on its own for piping in
// records from another tool's output.
type JSONLinesConnector struct {
	r io.Reader
}

// NewJSONLinesConnector wraps r as a Connector.
func NewJSONLinesConnector(r io.Reader) *JSONLinesConnector {
	return &JSONLinesConnector{r: r}
}

// Pull reads every line of r as a JSON record. A blank line is skipped.
func (c *JSONLinesConnector) Pull(ctx context.Context) ([]Record, error) {
	var records []Record
	scanner := bufio.NewScanner(c.r)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var jr jsonRecord
		if err := json.Unmarshal(line, &jr); err != nil {
			return nil, fmt.Errorf("syncpipeline: decode record: %w", err)
		}
		records = append(records, Record{
			Scope:      jr.Scope,
			Slot:       jr.Slot,
			OwnerAgent: jr.OwnerAgent,
			Content:    jr.Content,
			Embedding:  jr.Embedding,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("syncpipeline: scan input: %w", err)
	}
	return records, nil
}
