package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sitepipe/sitepipe/internal"
	"github.com/sitepipe/sitepipe/internal/security"
	"github.com/sitepipe/sitepipe/internal/store"
)

type PipelineServicer interface {
	InitializeRunQueues(context.Context) error
	ScheduleRetentionCleanup() error

	CreateRun(context.Context, int64, string) (*store.Run, error)
	GetRunByID(context.Context, int64) (*store.Run, error)
	ListStackRuns(context.Context, int64) ([]store.Run, error)
	ListStackRunsPaginated(context.Context, int64, int64, int64) ([]store.Run, error)
	GetRunCount(context.Context, int64) (int64, error)
	DeleteRun(context.Context, int64) error

	GetStackRunData(context.Context, int64) (*StackRunData, error)
	UpdateRunStartedOn(context.Context, int64, string, store.RunStatus, *time.Time) error
	UpdateRunStage(context.Context, int64, store.RunStage, *time.Time) error
	UpdateRunEndedOn(context.Context, int64, store.RunStatus, *string, *time.Time) error
	AppendRunOutput(context.Context, int64, string) error

	GetAPIKeyByValue(context.Context, string) (*store.APIKey, error)

	AddRunQueue(int64, int64) bool
	StartRunQueue(int64) error
	RemoveRunQueue(int64)
	EnqueueRun(*store.Run) error
	CancelRun(int64, int64) error
	ShutdownAll()
}

type PipelineService struct {
	stackStore  store.StackStore
	runStore    store.RunStore
	apiKeyStore store.APIKeyStore

	builderService BuilderServicer
	uploader       ArtifactUploader
	invalidator    CacheInvalidator
	uuidGenerator  UUIDGenerator
	scheduler      gocron.Scheduler
	aesEncrypter   security.Encrypter

	mu     sync.Mutex
	queues map[int64]*RunQueue
}

func NewPipelineService(
	stackStore store.StackStore,
	runStore store.RunStore,
	apiKeyStore store.APIKeyStore,
	builderService BuilderServicer,
	uploader ArtifactUploader,
	invalidator CacheInvalidator,
	uuidGenerator UUIDGenerator,
	scheduler gocron.Scheduler,
	aesEncrypter security.Encrypter,
) *PipelineService {
	return &PipelineService{
		stackStore:     stackStore,
		runStore:       runStore,
		apiKeyStore:    apiKeyStore,
		builderService: builderService,
		uploader:       uploader,
		invalidator:    invalidator,
		uuidGenerator:  uuidGenerator,
		scheduler:      scheduler,
		aesEncrypter:   aesEncrypter,
		queues:         make(map[int64]*RunQueue),
	}
}

// InitializeRunQueues creates and starts one run queue per stack that is
// not already torn down.
func (s *PipelineService) InitializeRunQueues(ctx context.Context) error {
	stacks, err := s.stackStore.ListStacks(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	ids := make([]int64, 0, len(stacks))
	for _, st := range stacks {
		if st.Status == store.StackDeleted {
			continue
		}
		ids = append(ids, st.StackID)
	}

	s.mu.Lock()
	for _, id := range ids {
		s.queues[id] = s.newRunQueue(internal.Config.QueueSize)
	}
	for i := range s.queues {
		go s.queues[i].Run()
	}
	s.mu.Unlock()
	return nil
}

// ScheduleRetentionCleanup registers a daily job that removes archived
// runs older than the configured retention window, together with their
// local artifact bundles.
func (s *PipelineService) ScheduleRetentionCleanup() error {
	if s.scheduler == nil {
		return nil
	}
	_, err := s.scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(3, 0, 0))),
		gocron.NewTask(func() {
			cutoff := time.Now().UTC().AddDate(0, 0, -int(internal.Config.RunRetentionDays))
			n, err := s.runStore.DeleteArchivedRunsBefore(context.Background(), cutoff)
			if err != nil {
				log.Println("err cleaning up archived runs:", err)
				return
			}
			if n > 0 {
				log.Printf("retention cleanup removed %d archived runs\n", n)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("error scheduling retention cleanup: %+w", err)
	}
	return nil
}

func (s *PipelineService) newRunQueue(maxRuns int64) *RunQueue {
	return NewRunQueue(s, s.uploader, s.invalidator, s.uuidGenerator, maxRuns)
}

func (s *PipelineService) CreateRun(
	ctx context.Context,
	stackID int64,
	branch string,
) (*store.Run, error) {
	return s.runStore.CreateRun(ctx, stackID, branch)
}

func (s *PipelineService) GetRunByID(ctx context.Context, runID int64) (*store.Run, error) {
	return s.runStore.ReadRunByID(ctx, runID)
}

func (s *PipelineService) ListStackRuns(
	ctx context.Context,
	stackID int64,
) ([]store.Run, error) {
	runs, err := s.runStore.ListStackRuns(ctx, stackID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return runs, nil
}

func (s *PipelineService) ListStackRunsPaginated(
	ctx context.Context,
	stackID, limit, offset int64,
) ([]store.Run, error) {
	return s.runStore.ListStackRunsPaginated(ctx, stackID, limit, offset)
}

func (s *PipelineService) GetRunCount(ctx context.Context, stackID int64) (int64, error) {
	return s.runStore.CountStackRuns(ctx, stackID)
}

func (s *PipelineService) DeleteRun(ctx context.Context, runID int64) error {
	r, err := s.runStore.ReadRunByID(ctx, runID)
	if err != nil {
		return err
	}
	if err := s.runStore.DeleteRun(ctx, runID); err != nil {
		return err
	}
	if r.ArtifactKey != nil {
		if err := os.RemoveAll(filepath.Dir(*r.ArtifactKey)); err != nil {
			log.Println("err removing run artifacts:", err)
		}
	}
	return nil
}

// GetStackRunData loads a stack and its builder and decrypts the
// builder's SSH key so the run queue can connect.
func (s *PipelineService) GetStackRunData(
	ctx context.Context,
	stackID int64,
) (*StackRunData, error) {
	st, err := s.stackStore.ReadStackByID(ctx, stackID)
	if err != nil {
		return nil, err
	}
	if st.BuilderID == nil {
		return nil, ErrNoBuilder{}
	}
	b, err := s.builderService.GetBuilderByID(ctx, *st.BuilderID)
	if err != nil {
		return nil, err
	}

	if st.ConnectionRefHash != "" {
		ref, err := s.aesEncrypter.DecryptAES(st.ConnectionRefHash)
		if err != nil {
			return nil, err
		}
		st.ConnectionRef = string(ref)
	}

	return &StackRunData{Stack: st, Builder: b}, nil
}

func (s *PipelineService) UpdateRunStartedOn(
	ctx context.Context,
	runID int64,
	workingDirectory string,
	status store.RunStatus,
	startedOn *time.Time,
) error {
	return s.runStore.UpdateRunStartedOn(ctx, runID, workingDirectory, status, startedOn)
}

func (s *PipelineService) UpdateRunStage(
	ctx context.Context,
	runID int64,
	stage store.RunStage,
	at *time.Time,
) error {
	return s.runStore.UpdateRunStage(ctx, runID, stage, at)
}

func (s *PipelineService) UpdateRunEndedOn(
	ctx context.Context,
	runID int64,
	status store.RunStatus,
	artifactKey *string,
	endedOn *time.Time,
) error {
	return s.runStore.UpdateRunEndedOn(ctx, runID, status, artifactKey, endedOn)
}

func (s *PipelineService) AppendRunOutput(
	ctx context.Context,
	runID int64,
	out string,
) error {
	return s.runStore.AppendRunOutput(ctx, runID, out)
}

func (s *PipelineService) GetAPIKeyByValue(
	ctx context.Context,
	value string,
) (*store.APIKey, error) {
	return s.apiKeyStore.ReadAPIKeyByValue(ctx, value)
}

// AddRunQueue creates a queue for the stack if none exists yet and
// reports whether it created one. Converging an existing stack must
// not replace its live queue or orphan buffered runs.
func (s *PipelineService) AddRunQueue(id int64, maxRuns int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queues[id]; ok {
		return false
	}
	s.queues[id] = s.newRunQueue(maxRuns)
	return true
}

func (s *PipelineService) StartRunQueue(id int64) error {
	rq, ok := s.getRunQueue(id)
	if !ok {
		return fmt.Errorf("run queue for stack %d does not exist", id)
	}
	go rq.Run()
	return nil
}

func (s *PipelineService) getRunQueue(id int64) (*RunQueue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rq, ok := s.queues[id]
	return rq, ok
}

func (s *PipelineService) RemoveRunQueue(id int64) {
	rq, ok := s.getRunQueue(id)
	if ok {
		rq.Shutdown()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queues, id)
}

func (s *PipelineService) EnqueueRun(r *store.Run) error {
	rq, ok := s.getRunQueue(r.RunStackID)
	if !ok {
		return fmt.Errorf("run queue for stack %d does not exist", r.RunStackID)
	}
	return rq.Enqueue(r)
}

func (s *PipelineService) CancelRun(stackID, runID int64) error {
	rq, ok := s.getRunQueue(stackID)
	if !ok {
		return fmt.Errorf("run queue for stack %d does not exist", stackID)
	}
	rq.CancelRun(runID)
	return nil
}

func (s *PipelineService) ShutdownAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var wg sync.WaitGroup
	for _, rq := range s.queues {
		wg.Go(func() {
			rq.Shutdown()
		})
	}
	wg.Wait()
}
