package store

import (
	"context"
	"time"

	"github.com/sitepipe/sitepipe/internal/types"
)

type StackStatus string

const (
	StackProvisioning StackStatus = "provisioning"
	StackActive       StackStatus = "active"
	StackDeleting     StackStatus = "deleting"
	StackDeleted      StackStatus = "deleted"
)

type Stack struct {
	StackID            int64 `param:"stack_id"`
	Workload           string
	Environment        string
	Region             string
	Deployer           string
	Repository         string
	Branch             string
	ConnectionRefHash  string
	BuildImage         string
	PriceTier          types.PriceTier
	BuilderID          *int64
	BucketName         string
	DistributionID     *string
	DistributionDomain *string
	Status             StackStatus
	CreatedOn          time.Time
	UpdatedOn          *time.Time

	// ConnectionRef is the decrypted connection reference, never persisted.
	ConnectionRef string `db:"-"`
}

type StackStore interface {
	CreateStack(context.Context, *types.StackParams, string, string) (*Stack, error)
	ReadStackByID(context.Context, int64) (*Stack, error)
	ReadStackByBucketName(context.Context, string) (*Stack, error)
	UpdateStackDistribution(context.Context, int64, string, string) error
	UpdateStackStatus(context.Context, int64, StackStatus) error
	UpdateStackBuilder(context.Context, int64, *int64) error
	ListStacks(context.Context) ([]*Stack, error)
	DeleteStack(context.Context, int64) error
}
