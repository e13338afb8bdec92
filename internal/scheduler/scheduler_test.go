package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/uvscan/pkg/logger"
)

type fakeJob struct {
	name     string
	schedule string
	runs     int32
	err      error
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }
func (j *fakeJob) Run(ctx context.Context) error {
	atomic.AddInt32(&j.runs, 1)
	return j.err
}

func TestAddJob_RejectsDuplicateName(t *testing.T) {
	s := New(logger.NewNop())

	require.NoError(t, s.AddJob(&fakeJob{name: "scan", schedule: "@daily"}))
	err := s.AddJob(&fakeJob{name: "scan", schedule: "@hourly"})
	assert.Error(t, err)
}

func TestAddJob_RejectsBadCronSpec(t *testing.T) {
	s := New(logger.NewNop())

	err := s.AddJob(&fakeJob{name: "scan", schedule: "not a cron spec"})
	assert.Error(t, err)
}

func TestRunJob_RecordsHistory(t *testing.T) {
	s := New(logger.NewNop())
	job := &fakeJob{name: "scan", schedule: "@daily"}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("scan"))

	// RunJob is async; poll for the result
	deadline := time.Now().Add(time.Second)
	for {
		history, err := s.History("scan")
		require.NoError(t, err)
		if last, ok := history.LastResult(); ok {
			assert.True(t, last.Success)
			assert.Equal(t, "scan", last.JobName)
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job result never recorded")
		}
		time.Sleep(5 * time.Millisecond)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&job.runs))
}

func TestRunJob_FailureRecorded(t *testing.T) {
	s := New(logger.NewNop())
	job := &fakeJob{name: "scan", schedule: "@daily", err: errors.New("provider down")}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("scan"))

	deadline := time.Now().Add(time.Second)
	for {
		history, _ := s.History("scan")
		if last, ok := history.LastResult(); ok {
			assert.False(t, last.Success)
			assert.Contains(t, last.Error, "provider down")
			assert.Equal(t, 0.0, history.SuccessRate())
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("job result never recorded")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunJob_UnknownJob(t *testing.T) {
	s := New(logger.NewNop())
	assert.Error(t, s.RunJob("missing"))
}

func TestJobs_ListsRegisteredNames(t *testing.T) {
	s := New(logger.NewNop())
	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "@daily"}))
	require.NoError(t, s.AddJob(&fakeJob{name: "b", schedule: "@hourly"}))

	assert.ElementsMatch(t, []string{"a", "b"}, s.Jobs())
}

func TestStatus_SnapshotsJobs(t *testing.T) {
	s := New(logger.NewNop())
	require.NoError(t, s.AddJob(&fakeJob{name: "b", schedule: "@hourly"}))
	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "@daily"}))

	statuses := s.Status()
	require.Len(t, statuses, 2)
	assert.Equal(t, "a", statuses[0].Name, "sorted by name")
	assert.Equal(t, "@daily", statuses[0].Schedule)
	assert.Equal(t, 0, statuses[0].Runs)
	assert.Nil(t, statuses[0].Last)

	require.NoError(t, s.RunJob("a"))
	deadline := time.Now().Add(time.Second)
	for {
		statuses = s.Status()
		if statuses[0].Runs > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job never recorded a run")
		}
		time.Sleep(5 * time.Millisecond)
	}

	assert.Equal(t, 1, statuses[0].Runs)
	assert.Equal(t, 1.0, statuses[0].SuccessRate)
	require.NotNil(t, statuses[0].Last)
	assert.True(t, statuses[0].Last.Success)
}

func TestJobHistory_Cap(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < 150; i++ {
		h.AddResult(JobResult{JobName: "scan", Success: true})
	}
	assert.Len(t, h.Results, 100, "history keeps only the last 100 results")
}
