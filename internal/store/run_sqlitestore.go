package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/sitepipe/sitepipe/internal"
)

type RunSQLiteStore struct {
	rdb, rwdb *sql.DB
}

func NewRunSQLiteStore(rdb, rwdb *sql.DB) *RunSQLiteStore {
	return &RunSQLiteStore{rdb, rwdb}
}

func (store *RunSQLiteStore) CreateRun(
	ctx context.Context,
	stackID int64,
	branch string,
) (*Run, error) {
	r := &Run{
		RunStackID: stackID,
		Branch:     branch,
		Stage:      StageSource,
		Status:     StatusQueued,
	}
	query := `insert into runs (
		run_stack_id,
		branch,
		stage,
		status
	)
	values ($1, $2, $3, $4)
	returning run_id, created_on`
	if err := sqlscan.Get(ctx, store.rwdb, r, query, r.RunStackID, r.Branch, r.Stage, r.Status); err != nil {
		return nil, err
	}
	return r, nil
}

func (store *RunSQLiteStore) ReadRunByID(ctx context.Context, id int64) (*Run, error) {
	r := &Run{RunID: id}
	query := "select * from runs where run_id = $1"
	if err := sqlscan.Get(ctx, store.rdb, r, query, r.RunID); err != nil {
		return nil, err
	}
	return r, nil
}

func (store *RunSQLiteStore) UpdateRunStartedOn(
	ctx context.Context,
	id int64,
	workingDirectory string,
	status RunStatus,
	startedOn *time.Time,
) error {
	query := `update runs
	set working_directory = $1,
		status = $2,
		started_on = $3
	where run_id = $4`
	_, err := store.rwdb.ExecContext(
		ctx, query,
		workingDirectory,
		status,
		startedOn.Format(internal.DBTimestampLayout),
		id,
	)
	return err
}

func (store *RunSQLiteStore) UpdateRunStage(
	ctx context.Context,
	id int64,
	stage RunStage,
	enteredOn *time.Time,
) error {
	var query string
	switch stage {
	case StageBuild:
		query = `update runs
		set stage = $1,
			build_started_on = $2
		where run_id = $3`
	case StageDeploy:
		query = `update runs
		set stage = $1,
			build_ended_on = $2,
			deploy_started_on = $2
		where run_id = $3`
	default:
		query = `update runs
		set stage = $1,
			started_on = $2
		where run_id = $3`
	}
	_, err := store.rwdb.ExecContext(
		ctx, query,
		stage,
		enteredOn.Format(internal.DBTimestampLayout),
		id,
	)
	return err
}

func (store *RunSQLiteStore) UpdateRunEndedOn(
	ctx context.Context,
	id int64,
	status RunStatus,
	artifactKey *string,
	endedOn *time.Time,
) error {
	query := `update runs
	set status = $1,
		artifact_key = $2,
		ended_on = $3
	where run_id = $4`
	_, err := store.rwdb.ExecContext(
		ctx, query,
		status,
		artifactKey,
		endedOn.Format(internal.DBTimestampLayout),
		id,
	)
	return err
}

func (store *RunSQLiteStore) AppendRunOutput(ctx context.Context, id int64, out string) error {
	tx, err := store.rwdb.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	r := &Run{RunID: id}
	readQuery := `select * from runs where run_id = $1`
	err = sqlscan.Get(ctx, tx, r, readQuery, r.RunID)
	if err != nil {
		return err
	}

	var existingOutput string
	if r.Output != nil {
		existingOutput = *r.Output
	}
	updateQuery := `update runs
	set output = $1
	where run_id = $2`
	_, err = tx.ExecContext(ctx, updateQuery, existingOutput+out, r.RunID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (store *RunSQLiteStore) DeleteRun(ctx context.Context, id int64) error {
	query := "delete from runs where run_id = $1"
	_, err := store.rwdb.ExecContext(ctx, query, id)
	return err
}

func (store *RunSQLiteStore) ListStackRuns(ctx context.Context, stackID int64) ([]Run, error) {
	runs := []Run{}
	query := `select * from runs
	where run_stack_id = $1
	order by run_id desc`
	if err := sqlscan.Select(ctx, store.rdb, &runs, query, stackID); err != nil {
		return nil, err
	}
	return runs, nil
}

func (store *RunSQLiteStore) ListStackRunsPaginated(
	ctx context.Context,
	stackID, limit, offset int64,
) ([]Run, error) {
	runs := []Run{}
	query := `select * from runs
	where run_stack_id = $1
	order by run_id desc
	limit $2 offset $3`
	if err := sqlscan.Select(ctx, store.rdb, &runs, query, stackID, limit, offset); err != nil {
		return nil, err
	}
	return runs, nil
}

func (store *RunSQLiteStore) CountStackRuns(ctx context.Context, stackID int64) (int64, error) {
	var count int64
	query := "select count(*) from runs where run_stack_id = $1"
	if err := store.rdb.QueryRowContext(ctx, query, stackID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (store *RunSQLiteStore) DeleteArchivedRunsBefore(
	ctx context.Context,
	cutoff time.Time,
) (int64, error) {
	query := "delete from runs where archive and created_on < $1"
	res, err := store.rwdb.ExecContext(ctx, query, cutoff.Format(internal.DBTimestampLayout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
