package service

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/sitepipe/sitepipe/internal/storage"
	"github.com/sitepipe/sitepipe/internal/types"
)

type DrainStatus string

const (
	DrainStatusSuccess DrainStatus = "success"
	DrainStatusFailed  DrainStatus = "failed"
)

type DrainRequest struct {
	Operation  types.Operation `json:"operation"`
	BucketName string          `json:"bucketName"`
}

type DrainResponse struct {
	Status      DrainStatus `json:"status"`
	ErrorDetail string      `json:"errorDetail,omitempty"`
}

type Drainer interface {
	Drain(context.Context, DrainRequest) DrainResponse
}

// DrainService empties a bucket so the bucket itself can be deleted.
// Site buckets are versioned, so the drain removes every object
// version and delete marker, not just the current objects. A bucket is
// either idle or draining; a second delete request for a bucket that
// is already draining is rejected. Create and update requests never
// touch any object.
type DrainService struct {
	lister   storage.VersionLister
	deleter  storage.VersionDeleter
	logger   *log.Logger
	pageSize int32

	mu       sync.Mutex
	draining map[string]bool
}

func NewDrainService(
	lister storage.VersionLister,
	deleter storage.VersionDeleter,
	logger *log.Logger,
	pageSize int32,
) *DrainService {
	return &DrainService{
		lister:   lister,
		deleter:  deleter,
		logger:   logger,
		pageSize: pageSize,
		draining: make(map[string]bool),
	}
}

func (s *DrainService) Drain(ctx context.Context, req DrainRequest) DrainResponse {
	if !req.Operation.Valid() {
		return DrainResponse{
			Status:      DrainStatusFailed,
			ErrorDetail: fmt.Sprintf("unknown operation %q", string(req.Operation)),
		}
	}
	if req.BucketName == "" {
		return DrainResponse{
			Status:      DrainStatusFailed,
			ErrorDetail: "bucketName is required",
		}
	}

	switch req.Operation {
	case types.OperationCreate, types.OperationUpdate:
		s.logger.Printf("drain no-op for %s on bucket %s", req.Operation, req.BucketName)
		return DrainResponse{Status: DrainStatusSuccess}
	case types.OperationDelete:
		return s.drainBucket(ctx, req.BucketName)
	default:
		return DrainResponse{
			Status:      DrainStatusFailed,
			ErrorDetail: fmt.Sprintf("unknown operation %q", string(req.Operation)),
		}
	}
}

func (s *DrainService) drainBucket(ctx context.Context, bucket string) DrainResponse {
	if !s.enterDraining(bucket) {
		return DrainResponse{
			Status:      DrainStatusFailed,
			ErrorDetail: fmt.Sprintf("bucket %s is already draining", bucket),
		}
	}
	defer s.exitDraining(bucket)

	s.logger.Printf("draining bucket %s", bucket)

	var deleted int
	keyMarker, versionMarker := "", ""
	for {
		versions, nextKey, nextVersion, err := s.lister.ListVersionPage(
			ctx, bucket, keyMarker, versionMarker, s.pageSize,
		)
		if err != nil {
			if storage.IsBucketNotFound(err) {
				// already gone, nothing left to drain
				s.logger.Printf("bucket %s does not exist, treating drain as complete", bucket)
				return DrainResponse{Status: DrainStatusSuccess}
			}
			s.logger.Printf("err listing objects in bucket %s: %+v", bucket, err)
			return DrainResponse{
				Status:      DrainStatusFailed,
				ErrorDetail: fmt.Sprintf("err listing objects in bucket %s: %v", bucket, err),
			}
		}

		if err := s.deleter.DeleteVersions(ctx, bucket, versions); err != nil {
			s.logger.Printf("err deleting objects in bucket %s: %+v", bucket, err)
			return DrainResponse{
				Status:      DrainStatusFailed,
				ErrorDetail: fmt.Sprintf("err deleting objects in bucket %s: %v", bucket, err),
			}
		}
		deleted += len(versions)

		if nextKey == "" && nextVersion == "" {
			break
		}
		keyMarker, versionMarker = nextKey, nextVersion
	}

	s.logger.Printf("drained bucket %s, deleted %d object versions", bucket, deleted)
	return DrainResponse{Status: DrainStatusSuccess}
}

func (s *DrainService) enterDraining(bucket string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draining[bucket] {
		return false
	}
	s.draining[bucket] = true
	return true
}

func (s *DrainService) exitDraining(bucket string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.draining, bucket)
}
