package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/sitepipe/sitepipe/internal"
	"github.com/sitepipe/sitepipe/internal/types"
)

type StackSQLiteStore struct {
	rdb, rwdb *sql.DB
}

func NewStackSQLiteStore(rdb, rwdb *sql.DB) *StackSQLiteStore {
	return &StackSQLiteStore{rdb, rwdb}
}

func (store *StackSQLiteStore) CreateStack(
	ctx context.Context,
	params *types.StackParams,
	connectionRefHash string,
	bucketName string,
) (*Stack, error) {
	s := &Stack{
		Workload:          params.Workload,
		Environment:       params.Environment,
		Region:            params.Region,
		Deployer:          params.Deployer,
		Repository:        params.Repository,
		Branch:            params.Branch,
		ConnectionRefHash: connectionRefHash,
		BuildImage:        params.BuildImage,
		PriceTier:         params.PriceTier,
		BucketName:        bucketName,
		Status:            StackProvisioning,
	}
	query := `insert into stacks (
		workload,
		environment,
		region,
		deployer,
		repository,
		branch,
		connection_ref_hash,
		build_image,
		price_tier,
		bucket_name,
		status
	)
	values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	returning stack_id, created_on`
	if err := sqlscan.Get(
		ctx, store.rwdb, s, query,
		s.Workload,
		s.Environment,
		s.Region,
		s.Deployer,
		s.Repository,
		s.Branch,
		s.ConnectionRefHash,
		s.BuildImage,
		s.PriceTier,
		s.BucketName,
		s.Status,
	); err != nil {
		return nil, err
	}
	return s, nil
}

func (store *StackSQLiteStore) ReadStackByID(ctx context.Context, id int64) (*Stack, error) {
	s := &Stack{StackID: id}
	query := "select * from stacks where stack_id = $1"
	if err := sqlscan.Get(ctx, store.rdb, s, query, s.StackID); err != nil {
		return nil, err
	}
	return s, nil
}

func (store *StackSQLiteStore) ReadStackByBucketName(
	ctx context.Context,
	bucketName string,
) (*Stack, error) {
	s := new(Stack)
	query := "select * from stacks where bucket_name = $1"
	if err := sqlscan.Get(ctx, store.rdb, s, query, bucketName); err != nil {
		return nil, err
	}
	return s, nil
}

func (store *StackSQLiteStore) UpdateStackDistribution(
	ctx context.Context,
	id int64,
	distributionID, distributionDomain string,
) error {
	query := `update stacks
	set distribution_id = $1,
		distribution_domain = $2,
		updated_on = $3
	where stack_id = $4`
	_, err := store.rwdb.ExecContext(
		ctx, query,
		distributionID,
		distributionDomain,
		time.Now().UTC().Format(internal.DBTimestampLayout),
		id,
	)
	return err
}

func (store *StackSQLiteStore) UpdateStackStatus(
	ctx context.Context,
	id int64,
	status StackStatus,
) error {
	query := `update stacks
	set status = $1,
		updated_on = $2
	where stack_id = $3`
	_, err := store.rwdb.ExecContext(
		ctx, query,
		status,
		time.Now().UTC().Format(internal.DBTimestampLayout),
		id,
	)
	return err
}

func (store *StackSQLiteStore) UpdateStackBuilder(
	ctx context.Context,
	id int64,
	builderID *int64,
) error {
	query := `update stacks
	set builder_id = $1,
		updated_on = $2
	where stack_id = $3`
	_, err := store.rwdb.ExecContext(
		ctx, query,
		builderID,
		time.Now().UTC().Format(internal.DBTimestampLayout),
		id,
	)
	return err
}

func (store *StackSQLiteStore) ListStacks(ctx context.Context) ([]*Stack, error) {
	stacks := []*Stack{}
	query := "select * from stacks where status != $1 order by stack_id"
	if err := sqlscan.Select(ctx, store.rdb, &stacks, query, StackDeleted); err != nil {
		return nil, err
	}
	return stacks, nil
}

func (store *StackSQLiteStore) DeleteStack(ctx context.Context, id int64) error {
	query := "delete from stacks where stack_id = $1"
	_, err := store.rwdb.ExecContext(ctx, query, id)
	return err
}
