package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/sitepipe/sitepipe/internal/storage"
	"github.com/sitepipe/sitepipe/internal/types"
	"github.com/stretchr/testify/assert"
)

// fakeBucket backs the lister/deleter interfaces with an in-memory
// version set split into fixed-size listing pages.
type fakeBucket struct {
	mu       sync.Mutex
	objects  map[string][]storage.ObjectVersion
	pageSize int

	listErrAfter   int
	deleteErrAfter int
	listCalls      int
	deleteCalls    int

	// when listGate is set, ListVersionPage signals listStarted once
	// and blocks until the gate is closed
	listStarted chan struct{}
	listGate    chan struct{}
	started     sync.Once
}

func newFakeBucket(pageSize int) *fakeBucket {
	return &fakeBucket{
		objects:        make(map[string][]storage.ObjectVersion),
		pageSize:       pageSize,
		listErrAfter:   -1,
		deleteErrAfter: -1,
	}
}

func (f *fakeBucket) fill(bucket string, n int) {
	versions := make([]storage.ObjectVersion, n)
	for i := range n {
		versions[i] = storage.ObjectVersion{
			Key:       fmt.Sprintf("assets/object-%05d.html", i),
			VersionID: "v1",
		}
	}
	f.objects[bucket] = versions
}

func (f *fakeBucket) fillVersions(bucket string, versions []storage.ObjectVersion) {
	f.objects[bucket] = versions
}

func (f *fakeBucket) ListVersionPage(
	ctx context.Context,
	bucket, keyMarker, versionMarker string,
	pageSize int32,
) ([]storage.ObjectVersion, string, string, error) {
	if f.listGate != nil {
		f.started.Do(func() { close(f.listStarted) })
		<-f.listGate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErrAfter >= 0 && f.listCalls >= f.listErrAfter {
		return nil, "", "", errors.New("listing failed")
	}
	f.listCalls++

	versions, ok := f.objects[bucket]
	if !ok {
		return nil, "", "", &smithy.GenericAPIError{
			Code:    "NoSuchBucket",
			Message: "the specified bucket does not exist",
		}
	}
	if len(versions) <= f.pageSize {
		page := make([]storage.ObjectVersion, len(versions))
		copy(page, versions)
		return page, "", "", nil
	}
	// copy the page so DeleteVersions compacting f.objects does not
	// shift elements under the slice handed back to the caller
	page := make([]storage.ObjectVersion, f.pageSize)
	copy(page, versions[:f.pageSize])
	last := page[len(page)-1]
	return page, last.Key, last.VersionID, nil
}

func (f *fakeBucket) DeleteVersions(
	ctx context.Context,
	bucket string,
	versions []storage.ObjectVersion,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErrAfter >= 0 && f.deleteCalls >= f.deleteErrAfter {
		return errors.New("batch delete failed")
	}
	f.deleteCalls++

	remaining := f.objects[bucket]
	for _, v := range versions {
		for i, r := range remaining {
			if r == v {
				remaining = append(remaining[:i], remaining[i+1:]...)
				break
			}
		}
	}
	f.objects[bucket] = remaining
	return nil
}

func (f *fakeBucket) count(bucket string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects[bucket])
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestDrainService_Drain(t *testing.T) {
	t.Run("success - delete drains 1200 objects across two pages", func(t *testing.T) {
		// arrange
		fb := newFakeBucket(1000)
		fb.fill("demo-dev-bucket", 1200)
		s := NewDrainService(fb, fb, testLogger(), 0)

		// act
		resp := s.Drain(context.Background(), DrainRequest{
			Operation:  types.OperationDelete,
			BucketName: "demo-dev-bucket",
		})

		// assert
		assert.Equal(t, DrainStatusSuccess, resp.Status)
		assert.Empty(t, resp.ErrorDetail)
		assert.Equal(t, 0, fb.count("demo-dev-bucket"))
		assert.Equal(t, 2, fb.deleteCalls)
	})
	t.Run("success - delete drains noncurrent versions and delete markers", func(t *testing.T) {
		// arrange
		fb := newFakeBucket(1000)
		fb.fillVersions("demo-dev-bucket", []storage.ObjectVersion{
			{Key: "index.html", VersionID: "v1"},
			{Key: "index.html", VersionID: "v2"},
			{Key: "index.html", VersionID: "dm1"},
			{Key: "app.js", VersionID: "v1"},
		})
		s := NewDrainService(fb, fb, testLogger(), 0)

		// act
		resp := s.Drain(context.Background(), DrainRequest{
			Operation:  types.OperationDelete,
			BucketName: "demo-dev-bucket",
		})

		// assert
		assert.Equal(t, DrainStatusSuccess, resp.Status)
		assert.Equal(t, 0, fb.count("demo-dev-bucket"))
	})
	t.Run("success - delete on empty bucket succeeds", func(t *testing.T) {
		// arrange
		fb := newFakeBucket(1000)
		fb.fill("empty-bucket", 0)
		s := NewDrainService(fb, fb, testLogger(), 0)

		// act
		resp := s.Drain(context.Background(), DrainRequest{
			Operation:  types.OperationDelete,
			BucketName: "empty-bucket",
		})

		// assert
		assert.Equal(t, DrainStatusSuccess, resp.Status)
	})
	t.Run("success - create on non-empty bucket is a no-op", func(t *testing.T) {
		// arrange
		fb := newFakeBucket(1000)
		fb.fill("demo-dev-bucket", 42)
		s := NewDrainService(fb, fb, testLogger(), 0)

		// act
		resp := s.Drain(context.Background(), DrainRequest{
			Operation:  types.OperationCreate,
			BucketName: "demo-dev-bucket",
		})

		// assert
		assert.Equal(t, DrainStatusSuccess, resp.Status)
		assert.Equal(t, 42, fb.count("demo-dev-bucket"))
		assert.Equal(t, 0, fb.deleteCalls)
	})
	t.Run("success - update on non-empty bucket is a no-op", func(t *testing.T) {
		// arrange
		fb := newFakeBucket(1000)
		fb.fill("demo-dev-bucket", 7)
		s := NewDrainService(fb, fb, testLogger(), 0)

		// act
		resp := s.Drain(context.Background(), DrainRequest{
			Operation:  types.OperationUpdate,
			BucketName: "demo-dev-bucket",
		})

		// assert
		assert.Equal(t, DrainStatusSuccess, resp.Status)
		assert.Equal(t, 7, fb.count("demo-dev-bucket"))
	})
	t.Run("failure - batch delete error fails drain and keeps remainder", func(t *testing.T) {
		// arrange
		fb := newFakeBucket(1000)
		fb.fill("demo-dev-bucket", 1200)
		fb.deleteErrAfter = 1
		s := NewDrainService(fb, fb, testLogger(), 0)

		// act
		resp := s.Drain(context.Background(), DrainRequest{
			Operation:  types.OperationDelete,
			BucketName: "demo-dev-bucket",
		})

		// assert
		assert.Equal(t, DrainStatusFailed, resp.Status)
		assert.Contains(t, resp.ErrorDetail, "err deleting objects")
		assert.Equal(t, 200, fb.count("demo-dev-bucket"))
	})
	t.Run("failure - listing error fails drain", func(t *testing.T) {
		// arrange
		fb := newFakeBucket(1000)
		fb.fill("demo-dev-bucket", 5)
		fb.listErrAfter = 0
		s := NewDrainService(fb, fb, testLogger(), 0)

		// act
		resp := s.Drain(context.Background(), DrainRequest{
			Operation:  types.OperationDelete,
			BucketName: "demo-dev-bucket",
		})

		// assert
		assert.Equal(t, DrainStatusFailed, resp.Status)
		assert.Contains(t, resp.ErrorDetail, "err listing objects")
		assert.Equal(t, 5, fb.count("demo-dev-bucket"))
	})
	t.Run("failure - delete for a bucket already draining is rejected", func(t *testing.T) {
		// arrange
		fb := newFakeBucket(1000)
		fb.fill("demo-dev-bucket", 3)
		fb.listStarted = make(chan struct{})
		fb.listGate = make(chan struct{})
		s := NewDrainService(fb, fb, testLogger(), 0)

		first := make(chan DrainResponse, 1)
		go func() {
			first <- s.Drain(context.Background(), DrainRequest{
				Operation:  types.OperationDelete,
				BucketName: "demo-dev-bucket",
			})
		}()
		<-fb.listStarted

		// act
		resp := s.Drain(context.Background(), DrainRequest{
			Operation:  types.OperationDelete,
			BucketName: "demo-dev-bucket",
		})

		// assert
		assert.Equal(t, DrainStatusFailed, resp.Status)
		assert.Contains(t, resp.ErrorDetail, "already draining")
		close(fb.listGate)
		assert.Equal(t, DrainStatusSuccess, (<-first).Status)
	})
	t.Run("success - missing bucket drains to success", func(t *testing.T) {
		// arrange
		fb := newFakeBucket(1000)
		s := NewDrainService(fb, fb, testLogger(), 0)

		// act
		resp := s.Drain(context.Background(), DrainRequest{
			Operation:  types.OperationDelete,
			BucketName: "never-created",
		})

		// assert
		assert.Equal(t, DrainStatusSuccess, resp.Status)
	})
	t.Run("failure - empty bucket name is rejected", func(t *testing.T) {
		// arrange
		fb := newFakeBucket(1000)
		s := NewDrainService(fb, fb, testLogger(), 0)

		// act
		resp := s.Drain(context.Background(), DrainRequest{
			Operation: types.OperationDelete,
		})

		// assert
		assert.Equal(t, DrainStatusFailed, resp.Status)
	})
	t.Run("failure - invalid operation is rejected", func(t *testing.T) {
		// arrange
		fb := newFakeBucket(1000)
		s := NewDrainService(fb, fb, testLogger(), 0)

		// act
		resp := s.Drain(context.Background(), DrainRequest{
			Operation:  types.Operation("destroy"),
			BucketName: "demo-dev-bucket",
		})

		// assert
		assert.Equal(t, DrainStatusFailed, resp.Status)
		assert.Contains(t, resp.ErrorDetail, "unknown operation")
	})
}
