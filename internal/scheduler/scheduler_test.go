package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/chamahub/backend/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	mu    sync.Mutex
	calls int
}

func (c *counter) job(n int, err error) func(context.Context) (int, error) {
	return func(context.Context) (int, error) {
		c.mu.Lock()
		c.calls++
		c.mu.Unlock()
		return n, err
	}
}

func TestRunByName(t *testing.T) {
	var c counter
	s, err := New(map[string]func(context.Context) (int, error){
		"billing_sweep": c.job(4, nil),
		"daily_backup":  c.job(0, errors.New("disk full")),
	}, Config{Location: time.UTC}, nil)
	require.NoError(t, err)

	count, err := s.Run(context.Background(), "billing_sweep")
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	_, err = s.Run(context.Background(), "daily_backup")
	assert.EqualError(t, err, "disk full")

	_, err = s.Run(context.Background(), "nope")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
	assert.Equal(t, 2, c.calls)

	jobs := s.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "billing_sweep", jobs[0].Name)
	assert.Equal(t, 4, jobs[0].LastCount)
	assert.NotNil(t, jobs[0].LastRun)
	assert.Equal(t, "disk full", jobs[1].LastError)
}

func TestJobsReportNextRun(t *testing.T) {
	nairobi, err := time.LoadLocation("Africa/Nairobi")
	if err != nil {
		t.Skip("tzdata not available")
	}
	var c counter
	s, err := New(map[string]func(context.Context) (int, error){
		"reminder_sweep": c.job(0, nil),
		"weekly_reports": c.job(0, nil),
	}, Config{Location: nairobi, Specs: map[string]string{"weekly_reports": "-"}}, nil)
	require.NoError(t, err)

	jobs := s.Jobs()
	require.Len(t, jobs, 2)

	reminder := jobs[0]
	assert.Equal(t, "0 9 * * 1", reminder.Schedule)
	require.NotNil(t, reminder.NextRun)
	next := reminder.NextRun.In(nairobi)
	assert.Equal(t, time.Monday, next.Weekday())
	assert.Equal(t, 9, next.Hour())
	assert.True(t, next.After(time.Now()))

	assert.Empty(t, jobs[1].Schedule)
	assert.Nil(t, jobs[1].NextRun, "on-demand jobs have no trigger")
}

func TestInvalidSpec(t *testing.T) {
	var c counter
	_, err := New(map[string]func(context.Context) (int, error){
		"billing_sweep": c.job(0, nil),
	}, Config{Specs: map[string]string{"billing_sweep": "every tuesday"}}, nil)
	assert.Error(t, err)
}

func TestRunRejectsOverlap(t *testing.T) {
	started := make(chan struct{})
	finish := make(chan struct{})
	s, err := New(map[string]func(context.Context) (int, error){
		"billing_sweep": func(context.Context) (int, error) {
			close(started)
			<-finish
			return 1, nil
		},
	}, Config{}, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background(), "billing_sweep")
		done <- err
	}()
	<-started

	_, err = s.Run(context.Background(), "billing_sweep")
	assert.True(t, domain.IsKind(err, domain.KindAlreadyExists))
	assert.True(t, s.Jobs()[0].Running)

	close(finish)
	require.NoError(t, <-done)
	assert.False(t, s.Jobs()[0].Running)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	a := NewRedisLocker(client, "")
	b := NewRedisLocker(client, "")

	release, ok, err := a.Acquire(ctx, "billing_sweep", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("chama:lease:billing_sweep"))

	_, ok, err = b.Acquire(ctx, "billing_sweep", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	assert.False(t, mr.Exists("chama:lease:billing_sweep"))

	_, ok, err = b.Acquire(ctx, "billing_sweep", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLeaseExpiry(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	l := NewRedisLocker(client, "test:")

	staleRelease, ok, err := l.Acquire(ctx, "daily_backup", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok, err = l.Acquire(ctx, "daily_backup", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// A holder whose lease expired must not delete the new holder's lease.
	staleRelease()
	assert.True(t, mr.Exists("test:daily_backup"))
}

func TestSchedulerSkipsWhenLeaseHeldElsewhere(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	other := NewRedisLocker(client, "")
	_, ok, err := other.Acquire(ctx, "billing_sweep", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	var c counter
	s, err := New(map[string]func(context.Context) (int, error){
		"billing_sweep": c.job(1, nil),
	}, Config{}, NewRedisLocker(client, ""))
	require.NoError(t, err)

	_, err = s.Run(ctx, "billing_sweep")
	assert.True(t, domain.IsKind(err, domain.KindAlreadyExists))
	assert.Zero(t, c.calls)
}

func TestStartStop(t *testing.T) {
	var c counter
	s, err := New(map[string]func(context.Context) (int, error){
		"daily_backup": c.job(1, nil),
	}, Config{}, nil)
	require.NoError(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
