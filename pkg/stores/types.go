package stores

import (
	"context"
	"database/sql"
	"time"
)

// RunStatus represents the status of a provisioning run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// EventLevel represents the severity level of an event
type EventLevel string

const (
	EventLevelDebug   EventLevel = "debug"
	EventLevelInfo    EventLevel = "info"
	EventLevelWarning EventLevel = "warning"
	EventLevelError   EventLevel = "error"
)

// Instance represents one registered server installation on a host
type Instance struct {
	ID            string    `json:"id"`
	Host          string    `json:"host"`
	OSFamily      string    `json:"os_family"`
	OSVersion     string    `json:"os_version"`
	PackageSource string    `json:"package_source"`
	Settings      string    `json:"settings"` // JSON blob of the global settings tree
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Cluster represents a resolved per-cluster settings snapshot
type Cluster struct {
	ID         string    `json:"id"`
	InstanceID string    `json:"instance_id"`
	Name       string    `json:"name"`
	Variant    string    `json:"variant"`
	Overrides  string    `json:"overrides"` // JSON blob
	Resolved   string    `json:"resolved"`  // JSON blob of the resolved tree
	Hash       string    `json:"hash"`      // SHA256 of Resolved for change detection
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FileState records the last generated content of one configuration
// file on one host, for change detection across runs
type FileState struct {
	ID         string    `json:"id"`
	InstanceID string    `json:"instance_id"`
	Cluster    string    `json:"cluster"`
	Kind       string    `json:"kind"`
	Path       string    `json:"path"`
	Checksum   string    `json:"checksum"` // SHA256 of written content
	LastRunID  string    `json:"last_run_id"`
	WrittenAt  time.Time `json:"written_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Run represents one provisioning run against an instance
type Run struct {
	ID          string     `json:"id"`
	InstanceID  string     `json:"instance_id"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Event represents an append-only log event
type Event struct {
	ID        int64      `json:"id"`
	RunID     *string    `json:"run_id,omitempty"`
	Level     EventLevel `json:"level"`
	Message   string     `json:"message"`
	Details   *string    `json:"details,omitempty"` // JSON blob
	Timestamp time.Time  `json:"timestamp"`
}

// Store defines the interface for the persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Instance operations
	CreateInstance(ctx context.Context, instance *Instance) error
	GetInstance(ctx context.Context, id string) (*Instance, error)
	UpdateInstanceSettings(ctx context.Context, id string, settings string) error
	ListInstances(ctx context.Context, limit, offset int) ([]*Instance, error)
	DeleteInstance(ctx context.Context, id string) error

	// Cluster snapshot operations
	UpsertCluster(ctx context.Context, cluster *Cluster) error
	GetCluster(ctx context.Context, instanceID, name string) (*Cluster, error)
	ListClustersByInstance(ctx context.Context, instanceID string) ([]*Cluster, error)
	DeleteCluster(ctx context.Context, id string) error

	// File state operations
	UpsertFileState(ctx context.Context, state *FileState) error
	GetFileState(ctx context.Context, instanceID, path string) (*FileState, error)
	ListFileStates(ctx context.Context, instanceID string) ([]*FileState, error)

	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	UpdateRunStatus(ctx context.Context, id string, status RunStatus, err *string) error
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)

	// Event operations
	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, runID *string, level *EventLevel, limit, offset int) ([]*Event, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
