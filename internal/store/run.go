package store

import (
	"context"
	"time"
)

type RunStatus string

const (
	StatusQueued    RunStatus = "queued"
	StatusRunning   RunStatus = "running"
	StatusCancelled RunStatus = "cancelled"
	StatusFailed    RunStatus = "failed"
	StatusPassed    RunStatus = "passed"
)

type RunStage string

const (
	StageSource RunStage = "source"
	StageBuild  RunStage = "build"
	StageDeploy RunStage = "deploy"
)

type Run struct {
	RunID            int64 `param:"run_id"`
	RunStackID       int64
	Branch           string
	CommitHash       *string
	Stage            RunStage
	Status           RunStatus
	WorkingDirectory *string
	Output           *string
	ArtifactKey      *string
	Archive          bool
	CreatedOn        time.Time
	StartedOn        *time.Time
	BuildStartedOn   *time.Time
	BuildEndedOn     *time.Time
	DeployStartedOn  *time.Time
	EndedOn          *time.Time
}

type RunStore interface {
	CreateRun(context.Context, int64, string) (*Run, error)
	ReadRunByID(context.Context, int64) (*Run, error)
	UpdateRunStartedOn(context.Context, int64, string, RunStatus, *time.Time) error
	UpdateRunStage(context.Context, int64, RunStage, *time.Time) error
	UpdateRunEndedOn(context.Context, int64, RunStatus, *string, *time.Time) error
	AppendRunOutput(context.Context, int64, string) error
	DeleteRun(context.Context, int64) error
	ListStackRuns(context.Context, int64) ([]Run, error)
	ListStackRunsPaginated(context.Context, int64, int64, int64) ([]Run, error)
	CountStackRuns(context.Context, int64) (int64, error)
	DeleteArchivedRunsBefore(context.Context, time.Time) (int64, error)
}
