package store

import (
	"context"
	"time"
)

// Builder is a remote host the build stage runs on, reached over SSH.
type Builder struct {
	BuilderID         int64 `param:"builder_id"`
	Name              string
	Hostname          string
	Username          string
	Workspace         string
	SSHPrivateKeyHash string
	CreatedOn         time.Time

	// SSHPrivateKey is the decrypted key, never persisted.
	SSHPrivateKey []byte `db:"-"`
}

type BuilderStore interface {
	CreateBuilder(context.Context, string, string, string, string, string) (*Builder, error)
	ReadBuilderByID(context.Context, int64) (*Builder, error)
	UpdateBuilder(context.Context, int64, string, string, string, string) error
	DeleteBuilder(context.Context, int64) error
	ListBuilders(context.Context) ([]*Builder, error)
}
