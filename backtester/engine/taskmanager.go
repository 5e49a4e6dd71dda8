package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/gofrs/uuid"
	gctcommon "github.com/thrasher-corp/tickbacktester/common"
)

// NewTaskManager creates a task manager to run multiple independent backtests
func NewTaskManager() *TaskManager {
	return &TaskManager{}
}

// AddTask adds a run to the manager
func (r *TaskManager) AddTask(b *BackTest) error {
	if r == nil {
		return fmt.Errorf("%w TaskManager", gctcommon.ErrNilPointer)
	}
	if b == nil {
		return fmt.Errorf("%w BackTest", gctcommon.ErrNilPointer)
	}
	r.m.Lock()
	defer r.m.Unlock()
	for i := range r.tasks {
		if r.tasks[i].Equal(b) {
			return fmt.Errorf("%w %s %s", errTaskAlreadyMonitored, b.MetaData.ID, b.MetaData.Nickname)
		}
	}

	err := b.SetupMetaData()
	if err != nil {
		return err
	}
	r.tasks = append(r.tasks, b)
	return nil
}

// List details all tasks
func (r *TaskManager) List() ([]*TaskSummary, error) {
	if r == nil {
		return nil, fmt.Errorf("%w TaskManager", gctcommon.ErrNilPointer)
	}
	r.m.Lock()
	defer r.m.Unlock()
	resp := make([]*TaskSummary, len(r.tasks))
	for i := range r.tasks {
		sum, err := r.tasks[i].GenerateSummary()
		if err != nil {
			return nil, err
		}
		resp[i] = sum
	}
	return resp, nil
}

// task returns the index of the run with the id. The caller holds r.m.
func (r *TaskManager) task(id uuid.UUID) (int, error) {
	idx := slices.IndexFunc(r.tasks, func(b *BackTest) bool { return b.MatchesID(id) })
	if idx < 0 {
		return -1, fmt.Errorf("%s %w", id, errTaskNotFound)
	}
	return idx, nil
}

// GetSummary returns details about a task
func (r *TaskManager) GetSummary(id uuid.UUID) (*TaskSummary, error) {
	if r == nil {
		return nil, fmt.Errorf("%w TaskManager", gctcommon.ErrNilPointer)
	}
	r.m.Lock()
	defer r.m.Unlock()
	idx, err := r.task(id)
	if err != nil {
		return nil, err
	}
	return r.tasks[idx].GenerateSummary()
}

// StopTask stops a running task
func (r *TaskManager) StopTask(id uuid.UUID) error {
	if r == nil {
		return fmt.Errorf("%w TaskManager", gctcommon.ErrNilPointer)
	}
	r.m.Lock()
	defer r.m.Unlock()
	idx, err := r.task(id)
	if err != nil {
		return err
	}
	return r.tasks[idx].Stop()
}

// StopAllTasks stops all running tasks
func (r *TaskManager) StopAllTasks() ([]*TaskSummary, error) {
	if r == nil {
		return nil, fmt.Errorf("%w TaskManager", gctcommon.ErrNilPointer)
	}
	r.m.Lock()
	defer r.m.Unlock()
	resp := make([]*TaskSummary, 0, len(r.tasks))
	for i := range r.tasks {
		if !r.tasks[i].IsRunning() {
			continue
		}
		err := r.tasks[i].Stop()
		if err != nil {
			return nil, err
		}
		sum, err := r.tasks[i].GenerateSummary()
		if err != nil {
			return nil, err
		}
		resp = append(resp, sum)
	}
	return resp, nil
}

// StartTask starts playing a task in the background
func (r *TaskManager) StartTask(ctx context.Context, id uuid.UUID) error {
	if r == nil {
		return fmt.Errorf("%w TaskManager", gctcommon.ErrNilPointer)
	}
	r.m.Lock()
	defer r.m.Unlock()
	idx, err := r.task(id)
	if err != nil {
		return err
	}
	return r.tasks[idx].Start(ctx)
}

// StartAllTasks starts every task that has not ran
func (r *TaskManager) StartAllTasks(ctx context.Context) ([]uuid.UUID, error) {
	if r == nil {
		return nil, fmt.Errorf("%w TaskManager", gctcommon.ErrNilPointer)
	}
	r.m.Lock()
	defer r.m.Unlock()
	executedRuns := make([]uuid.UUID, 0, len(r.tasks))
	for i := range r.tasks {
		if r.tasks[i].HasRan() || r.tasks[i].IsRunning() {
			continue
		}
		executedRuns = append(executedRuns, r.tasks[i].MetaData.ID)
		err := r.tasks[i].Start(ctx)
		if err != nil {
			return nil, err
		}
	}

	return executedRuns, nil
}

// ClearTask closes a finished or unstarted task and forgets it
func (r *TaskManager) ClearTask(id uuid.UUID) error {
	if r == nil {
		return fmt.Errorf("%w TaskManager", gctcommon.ErrNilPointer)
	}
	r.m.Lock()
	defer r.m.Unlock()
	idx, err := r.task(id)
	if err != nil {
		return err
	}
	if r.tasks[idx].IsRunning() {
		return fmt.Errorf("%w %v, stop it first", errCannotClear, id)
	}
	err = r.tasks[idx].Close()
	r.tasks = slices.Delete(r.tasks, idx, idx+1)
	return err
}

// ClearAllTasks clears every task that is not running and reports which
// were cleared and which remain
func (r *TaskManager) ClearAllTasks() (cleared, remaining []*TaskSummary, err error) {
	if r == nil {
		return nil, nil, fmt.Errorf("%w TaskManager", gctcommon.ErrNilPointer)
	}
	r.m.Lock()
	defer r.m.Unlock()
	kept := r.tasks[:0]
	for _, b := range r.tasks {
		sum, sumErr := b.GenerateSummary()
		if sumErr != nil {
			return nil, nil, sumErr
		}
		if b.IsRunning() {
			remaining = append(remaining, sum)
			kept = append(kept, b)
			continue
		}
		cleared = append(cleared, sum)
		if closeErr := b.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}
	clear(r.tasks[len(kept):])
	r.tasks = kept
	return cleared, remaining, err
}

// WaitForTasks blocks until every started task finishes, returning the
// first run error
func (r *TaskManager) WaitForTasks() error {
	if r == nil {
		return fmt.Errorf("%w TaskManager", gctcommon.ErrNilPointer)
	}
	r.m.Lock()
	tasks := slices.Clone(r.tasks)
	r.m.Unlock()
	var firstErr error
	for _, t := range tasks {
		if !t.IsRunning() && !t.HasRan() {
			continue
		}
		if err := t.Wait(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
