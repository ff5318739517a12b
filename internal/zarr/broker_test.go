package zarr

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/freva-org/freva-nextgen/internal/cache"
	"github.com/freva-org/freva-nextgen/internal/domain/model"
)

// newTestBroker запускает miniredis и оборачивает его в cache.Client.
func newTestBroker(t *testing.T) (*Broker, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := cache.New(cache.Options{Addr: mr.Addr()})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewBroker(client, "zarr-requests", logger), mr
}

func TestBroker_SubmitAndGet(t *testing.T) {
	b, mr := newTestBroker(t)
	ctx := context.Background()

	job, err := b.Submit(ctx, "alice", []string{"/data/a.nc"}, model.ConvertOptions{})
	require.NoError(t, err)
	require.Equal(t, model.JobQueued, job.Status)
	require.Equal(t, "submitted", job.Reason)

	require.True(t, mr.Exists("zarr:"+job.Token+":status"), "запись job лежит под ключом воркер-контракта")

	got, err := b.Get(ctx, job.Token)
	require.NoError(t, err)
	require.Equal(t, job.Token, got.Token)
}

func TestBroker_SubmitIsIdempotent(t *testing.T) {
	b, _ := newTestBroker(t)
	ctx := context.Background()

	opts := model.ConvertOptions{Aggregate: model.AggregateMerge}
	job1, err := b.Submit(ctx, "alice", []string{"/data/a.nc", "/data/b.nc"}, opts)
	require.NoError(t, err)

	job2, err := b.Submit(ctx, "alice", []string{"/data/b.nc", "/data/a.nc"}, opts)
	require.NoError(t, err)

	require.Equal(t, job1.Token, job2.Token, "порядок входных путей не должен влиять на токен")
}

func TestBroker_SubmitEmptyPaths(t *testing.T) {
	b, _ := newTestBroker(t)
	_, err := b.Submit(context.Background(), "alice", nil, model.ConvertOptions{})
	require.Error(t, err)
}

func TestBroker_TransitionHappyPath(t *testing.T) {
	b, _ := newTestBroker(t)
	ctx := context.Background()

	job, err := b.Submit(ctx, "alice", []string{"/data/a.nc"}, model.ConvertOptions{})
	require.NoError(t, err)

	running, err := b.Transition(ctx, job.Token, model.JobRunning, "")
	require.NoError(t, err)
	require.Equal(t, model.JobRunning, running.Status)

	ready, err := b.Transition(ctx, job.Token, model.JobReady, "")
	require.NoError(t, err)
	require.Equal(t, model.JobReady, ready.Status)
}

func TestBroker_TransitionRejectsInvalid(t *testing.T) {
	b, _ := newTestBroker(t)
	ctx := context.Background()

	job, err := b.Submit(ctx, "alice", []string{"/data/a.nc"}, model.ConvertOptions{})
	require.NoError(t, err)

	_, err = b.Transition(ctx, job.Token, model.JobReady, "")
	require.Error(t, err, "queued → ready напрямую недопустим")
}

func TestBroker_ChunkRoundTrip(t *testing.T) {
	b, _ := newTestBroker(t)
	ctx := context.Background()

	job, err := b.Submit(ctx, "alice", []string{"/data/a.nc"}, model.ConvertOptions{})
	require.NoError(t, err)

	require.NoError(t, b.StoreChunk(ctx, job.Token, "tas/0.0.0", []byte{1, 2, 3}, time.Minute))

	data, err := b.LoadChunk(ctx, job.Token, "tas/0.0.0")
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, data)

	paths, err := b.ListChunks(ctx, job.Token)
	require.NoError(t, err)
	require.Contains(t, paths, "tas/0.0.0")
}

func TestBroker_GetMissing(t *testing.T) {
	b, _ := newTestBroker(t)
	_, err := b.Get(context.Background(), "does-not-exist")
	require.Error(t, err)
}
