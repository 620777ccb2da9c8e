package store

import "time"

// Memory lifecycle statuses. A slot has at most one live memory at a time;
// supersede and retract move a row out of the live set without deleting it.
const (
	MemoryLive        = "live"
	MemorySuperseded  = "superseded"
	MemoryRetracted   = "retracted"
)

// Memory is a single fact row: one slot's current or historical value.
type Memory struct {
	ID           string
	Scope        string
	Slot         string
	OwnerAgent   string
	Content      string
	Embedding    []float32
	Status       string
	SupersedesID string // empty when this memory didn't supersede another
	Version      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ExpiresAt    *time.Time
}

// Task statuses for the cooperative task queue (§4.6's claim/finish guard).
const (
	TaskPending = "pending"
	TaskClaimed = "claimed"
	TaskDone    = "done"
	TaskFailed  = "failed"
)

// Task is a unit of work agents can claim and finish.
type Task struct {
	ID        string
	Kind      string
	Payload   string
	Status    string
	ClaimedBy string
	ClaimedAt *time.Time
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Job statuses for the internal background job queue (§4.8).
const (
	JobPending = "pending"
	JobRunning = "running"
	JobDone    = "done"
	JobFailed  = "failed"
)

// Job kinds the detector and memory lifecycle enqueue.
const (
	JobKindDetectDuplicate = "detect_duplicate"
	JobKindDetectConflict  = "detect_conflict"
	JobKindPruneExpired    = "prune_expired"
)

// Job is a unit of asynchronous post-commit work.
type Job struct {
	ID        int64
	Kind      string
	Payload   string
	Status    string
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Lease is a singleton-holder row for the Background Worker Lease pattern.
type Lease struct {
	Name      string
	HolderID  string
	ExpiresAt time.Time
	Version   int
}

// Conflict statuses.
const (
	ConflictOpen     = "open"
	ConflictResolved = "resolved"
)

// MemoryConflict groups two or more live memories competing for the same
// scope/slot from different owning agents.
type MemoryConflict struct {
	ID         string
	Scope      string
	Slot       string
	Status     string
	ResolvedBy string
	ResolvedID string
	MemberIDs  []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Duplicate statuses.
const (
	DuplicateOpen     = "open"
	DuplicateResolved = "resolved"
)

// MemoryDuplicate records a pair of memories whose embeddings exceeded the
// configured similarity threshold.
type MemoryDuplicate struct {
	ID         string
	MemoryIDA  string
	MemoryIDB  string
	Similarity float64
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Artifact is a binary attachment optionally linked to a memory.
type Artifact struct {
	ID        string
	MemoryID  string
	MimeType  string
	SizeBytes int64
	Path      string
	CreatedAt time.Time
}

// AgentToken is a hashed bearer credential used by the JSON-RPC transport
// to authenticate which agent is making a call.
type AgentToken struct {
	TokenHash string
	AgentID   string
	Label     string
	CreatedAt time.Time
	RevokedAt *time.Time
}
