package jobs

import (
	"context"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	cron "github.com/robfig/cron"
	"github.com/sirupsen/logrus"
)

// CronJob is a background task run on a cron schedule.
type CronJob interface {
	Name() string
	Schedule() string
	Run(ctx context.Context)
}

// TaskExecutor runs cron jobs, never running the same job twice at once.
type TaskExecutor struct {
	cron     *cron.Cron
	jobs     []CronJob
	running  mapset.Set[string]
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

func NewTaskExecutor(jobs ...CronJob) *TaskExecutor {
	return &TaskExecutor{
		cron:    cron.New(),
		jobs:    jobs,
		running: mapset.NewThreadUnsafeSet[string](),
	}
}

// Start schedules every job and starts the cron in its own goroutine. It fails
// on the first invalid schedule.
func (t *TaskExecutor) Start(ctx context.Context) error {
	t.ctx, t.cancel = context.WithCancel(ctx)

	for _, job := range t.jobs {
		if err := t.cron.AddFunc(job.Schedule(), func() { t.RunNow(job) }); err != nil {
			logrus.Errorf("failed to add task %s to cron: %v", job.Name(), err)
			return err
		}
		logrus.Infof("scheduled task %s at %q", job.Name(), job.Schedule())
	}

	t.cron.Start()
	return nil
}

// RunNow runs job synchronously unless it is already running. It reports
// whether the job ran.
func (t *TaskExecutor) RunNow(job CronJob) bool {
	t.mu.Lock()
	if t.running.Contains(job.Name()) {
		t.mu.Unlock()
		logrus.Warnf("task %s is already running", job.Name())
		return false
	}
	t.running.Add(job.Name())
	t.inflight.Add(1)
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.running.Remove(job.Name())
		t.mu.Unlock()
		t.inflight.Done()
	}()

	ctx := t.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	job.Run(ctx)
	return true
}

// Stop stops scheduling, cancels running jobs and waits for them to return.
func (t *TaskExecutor) Stop() {
	logrus.Infof("stopping all tasks")
	t.cron.Stop()
	if t.cancel != nil {
		t.cancel()
	}
	t.inflight.Wait()
}
