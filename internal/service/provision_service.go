package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/sitepipe/sitepipe/internal/cdn"
	"github.com/sitepipe/sitepipe/internal/security"
	"github.com/sitepipe/sitepipe/internal/store"
	"github.com/sitepipe/sitepipe/internal/types"
)

type BucketProvisioner interface {
	EnsureBucket(ctx context.Context, name, originAccessIdentity string) error
	DeleteBucket(ctx context.Context, name string) error
	BucketExists(ctx context.Context, name string) (bool, error)
}

type DistributionProvisioner interface {
	EnsureDistribution(
		ctx context.Context,
		existingID *string,
		bucketName string,
		tier types.PriceTier,
		callerRef string,
	) (*cdn.Distribution, error)
	DisableAndDelete(ctx context.Context, id string) error
	Invalidate(ctx context.Context, id string, paths []string, callerRef string) error
}

// StackOutput is what a provisioned stack exports for downstream use.
type StackOutput struct {
	StackID    int64  `json:"stack_id"`
	BucketName string `json:"bucket_name"`
	URL        string `json:"url"`
}

type ProvisionServicer interface {
	ProvisionStack(context.Context, *types.StackParams) (*StackOutput, error)
	GetStackByID(context.Context, int64) (*store.Stack, error)
	ListStacks(context.Context) ([]*store.Stack, error)
	AssignBuilder(context.Context, int64, *int64) error
	TeardownStack(context.Context, int64) error
}

type ProvisionService struct {
	stackStore    store.StackStore
	buckets       BucketProvisioner
	distributions DistributionProvisioner
	drainer       Drainer
	aesEncrypter  security.Encrypter
	logger        *log.Logger
}

func NewProvisionService(
	stackStore store.StackStore,
	buckets BucketProvisioner,
	distributions DistributionProvisioner,
	drainer Drainer,
	aesEncrypter security.Encrypter,
	logger *log.Logger,
) *ProvisionService {
	return &ProvisionService{
		stackStore:    stackStore,
		buckets:       buckets,
		distributions: distributions,
		drainer:       drainer,
		aesEncrypter:  aesEncrypter,
		logger:        logger,
	}
}

// ProvisionStack validates the parameter set, then converges the stack's
// resources: distribution first (its access identity goes into the bucket
// policy), then the bucket. Calling it again for an existing stack
// re-converges and returns the same outputs.
func (s *ProvisionService) ProvisionStack(
	ctx context.Context,
	params *types.StackParams,
) (*StackOutput, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	bucketName := params.BucketName()

	stack, err := s.stackStore.ReadStackByBucketName(ctx, bucketName)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		stack, err = s.stackStore.CreateStack(
			ctx,
			params,
			s.aesEncrypter.EncryptAES(params.ConnectionRef),
			bucketName,
		)
		if err != nil {
			return nil, err
		}
		s.logger.Printf("created stack %d for bucket %s", stack.StackID, bucketName)
	}

	dist, err := s.distributions.EnsureDistribution(
		ctx,
		stack.DistributionID,
		bucketName,
		params.PriceTier,
		bucketName,
	)
	if err != nil {
		return nil, fmt.Errorf("err ensuring distribution for stack %d: %w", stack.StackID, err)
	}

	if err := s.buckets.EnsureBucket(ctx, bucketName, dist.OriginAccessIdentity); err != nil {
		return nil, fmt.Errorf("err ensuring bucket %s: %w", bucketName, err)
	}

	if err := s.stackStore.UpdateStackDistribution(
		ctx, stack.StackID, dist.ID, dist.DomainName,
	); err != nil {
		return nil, err
	}
	if err := s.stackStore.UpdateStackStatus(ctx, stack.StackID, store.StackActive); err != nil {
		return nil, err
	}

	return &StackOutput{
		StackID:    stack.StackID,
		BucketName: bucketName,
		URL:        "https://" + dist.DomainName,
	}, nil
}

func (s *ProvisionService) GetStackByID(ctx context.Context, id int64) (*store.Stack, error) {
	return s.stackStore.ReadStackByID(ctx, id)
}

func (s *ProvisionService) ListStacks(ctx context.Context) ([]*store.Stack, error) {
	return s.stackStore.ListStacks(ctx)
}

func (s *ProvisionService) AssignBuilder(
	ctx context.Context,
	stackID int64,
	builderID *int64,
) error {
	return s.stackStore.UpdateStackBuilder(ctx, stackID, builderID)
}

// TeardownStack destroys a stack's resources. The bucket must drain to
// empty before its deletion is attempted; a failed drain aborts the
// teardown and leaves the stack in the deleting state for the operator.
func (s *ProvisionService) TeardownStack(ctx context.Context, id int64) error {
	stack, err := s.stackStore.ReadStackByID(ctx, id)
	if err != nil {
		return err
	}
	if stack.Status == store.StackDeleted {
		return nil
	}

	if err := s.stackStore.UpdateStackStatus(ctx, id, store.StackDeleting); err != nil {
		return err
	}

	resp := s.drainer.Drain(ctx, DrainRequest{
		Operation:  types.OperationDelete,
		BucketName: stack.BucketName,
	})
	if resp.Status != DrainStatusSuccess {
		return DrainFailedError{BucketName: stack.BucketName, Detail: resp.ErrorDetail}
	}

	if err := s.buckets.DeleteBucket(ctx, stack.BucketName); err != nil {
		return fmt.Errorf("err deleting bucket %s: %w", stack.BucketName, err)
	}

	if stack.DistributionID != nil && *stack.DistributionID != "" {
		if err := s.distributions.DisableAndDelete(ctx, *stack.DistributionID); err != nil {
			return fmt.Errorf(
				"err deleting distribution %s: %w", *stack.DistributionID, err,
			)
		}
	}

	if err := s.stackStore.UpdateStackStatus(ctx, id, store.StackDeleted); err != nil {
		return err
	}
	s.logger.Printf("stack %d torn down, bucket %s removed", id, stack.BucketName)
	return nil
}
