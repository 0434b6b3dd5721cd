package store

import (
	"context"
	"database/sql"

	"github.com/georgysavva/scany/v2/sqlscan"
)

type BuilderSQLiteStore struct {
	rdb, rwdb *sql.DB
}

func NewBuilderSQLiteStore(rdb, rwdb *sql.DB) *BuilderSQLiteStore {
	return &BuilderSQLiteStore{rdb, rwdb}
}

func (store *BuilderSQLiteStore) CreateBuilder(
	ctx context.Context,
	name, hostname, username, workspace, sshPrivateKeyHash string,
) (*Builder, error) {
	b := &Builder{
		Name:              name,
		Hostname:          hostname,
		Username:          username,
		Workspace:         workspace,
		SSHPrivateKeyHash: sshPrivateKeyHash,
	}
	query := `insert into builders (
		name,
		hostname,
		username,
		workspace,
		ssh_private_key_hash
	)
	values ($1, $2, $3, $4, $5)
	returning builder_id, created_on`
	if err := sqlscan.Get(
		ctx, store.rwdb, b, query,
		b.Name, b.Hostname, b.Username, b.Workspace, b.SSHPrivateKeyHash,
	); err != nil {
		return nil, err
	}
	return b, nil
}

func (store *BuilderSQLiteStore) ReadBuilderByID(ctx context.Context, id int64) (*Builder, error) {
	b := &Builder{BuilderID: id}
	query := "select * from builders where builder_id = $1"
	if err := sqlscan.Get(ctx, store.rdb, b, query, b.BuilderID); err != nil {
		return nil, err
	}
	return b, nil
}

func (store *BuilderSQLiteStore) UpdateBuilder(
	ctx context.Context,
	id int64,
	name, hostname, username, workspace string,
) error {
	query := `update builders
	set name = $1,
		hostname = $2,
		username = $3,
		workspace = $4
	where builder_id = $5`
	_, err := store.rwdb.ExecContext(ctx, query, name, hostname, username, workspace, id)
	return err
}

func (store *BuilderSQLiteStore) DeleteBuilder(ctx context.Context, id int64) error {
	query := "delete from builders where builder_id = $1"
	_, err := store.rwdb.ExecContext(ctx, query, id)
	return err
}

func (store *BuilderSQLiteStore) ListBuilders(ctx context.Context) ([]*Builder, error) {
	builders := []*Builder{}
	query := "select * from builders order by builder_id"
	if err := sqlscan.Select(ctx, store.rdb, &builders, query); err != nil {
		return nil, err
	}
	return builders, nil
}
