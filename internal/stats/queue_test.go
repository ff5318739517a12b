package stats

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freva-org/freva-nextgen/internal/domain/model"
)

type fakeSink struct {
	mu   sync.Mutex
	recs []*model.StatsRecord
}

func (f *fakeSink) Record(ctx context.Context, rec *model.StatsRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, rec)
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recs)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQueue_PublishAndDrain(t *testing.T) {
	sink := &fakeSink{}
	q := NewQueue(10, sink, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	q.Publish(&model.StatsRecord{Route: "/databrowser/metadata/freva"})

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, time.Millisecond)
}

func TestQueue_DropsWhenFull(t *testing.T) {
	sink := &fakeSink{}
	q := NewQueue(1, sink, newTestLogger())
	// Не запускаем Start — канал не потребляется, второй Publish должен отброситься.

	q.Publish(&model.StatsRecord{Route: "/a"})
	q.Publish(&model.StatsRecord{Route: "/b"})

	assert.Equal(t, 1, q.Len())
}

func TestQueue_StopIsIdempotentSafe(t *testing.T) {
	sink := &fakeSink{}
	q := NewQueue(1, sink, newTestLogger())
	q.Start(context.Background())
	q.Stop()
	q.Stop()
}
