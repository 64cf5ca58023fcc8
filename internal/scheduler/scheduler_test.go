package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcJob struct {
	name string
	fn   func() error
}

func (j funcJob) Run() error   { return j.fn() }
func (j funcJob) Name() string { return j.name }

func TestScheduler_AddJob(t *testing.T) {
	s := New(time.UTC, zerolog.Nop())

	require.NoError(t, s.AddJob("30 18 * * 1-5", funcJob{name: "a", fn: func() error { return nil }}))
	assert.Error(t, s.AddJob("@hourly", funcJob{name: "a", fn: func() error { return nil }}))
	assert.Error(t, s.AddJob("not a schedule", funcJob{name: "b", fn: func() error { return nil }}))

	status := s.Status()
	require.Len(t, status, 1)
	assert.Equal(t, "30 18 * * 1-5", status[0].Schedule)
}

func TestScheduler_RunNowRecordsStatus(t *testing.T) {
	s := New(nil, zerolog.Nop())
	ok := funcJob{name: "ok", fn: func() error { return nil }}
	bad := funcJob{name: "bad", fn: func() error { return errors.New("boom") }}
	require.NoError(t, s.AddJob("@daily", ok))
	require.NoError(t, s.AddJob("@daily", bad))

	assert.NoError(t, s.RunNow(ok))
	assert.EqualError(t, s.RunNow(bad), "boom")

	status := s.Status()
	require.Len(t, status, 2)
	assert.Equal(t, "bad", status[0].Name)
	assert.Equal(t, "boom", status[0].LastErr)
	assert.Equal(t, "ok", status[1].Name)
	assert.Empty(t, status[1].LastErr)
	assert.False(t, status[1].LastRun.IsZero())
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(time.UTC, zerolog.Nop())
	ran := make(chan struct{}, 1)
	require.NoError(t, s.AddJob("@every 1s", funcJob{name: "tick", fn: func() error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}}))

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestScheduler_Trigger(t *testing.T) {
	s := New(time.UTC, zerolog.Nop())
	runs := 0
	require.NoError(t, s.AddJob("@daily", funcJob{name: "count", fn: func() error { runs++; return nil }}))

	require.NoError(t, s.Trigger("count"))
	assert.Equal(t, 1, runs)

	err := s.Trigger("missing")
	assert.ErrorIs(t, err, ErrUnknownJob)
}
