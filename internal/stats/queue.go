// Пакет stats — очередь статистики запросов. Append-only:
// каждый завершённый запрос публикует model.StatsRecord в ограниченный
// буферизованный канал; фоновая горутина последовательно сливает записи
// в документохранилище. При переполнении очереди новые записи
// отбрасываются (drop-newest) — наблюдаемость никогда не блокирует путь
// запроса.
package stats

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/freva-org/freva-nextgen/internal/domain/model"
)

var droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "stats_queue_dropped_total",
	Help: "Количество записей статистики, отброшенных из-за переполнения очереди",
})

// Sink — получатель записей статистики (реализуется репозиторием
// документохранилища или любым другим долгосрочным хранилищем).
type Sink interface {
	Record(ctx context.Context, rec *model.StatsRecord) error
}

// Queue — ограниченная очередь статистики с фоновым потребителем.
type Queue struct {
	ch     chan *model.StatsRecord
	sink   Sink
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewQueue создаёт очередь ёмкостью capacity (API_STATS_QUEUE_SIZE).
func NewQueue(capacity int, sink Sink, logger *slog.Logger) *Queue {
	return &Queue{
		ch:     make(chan *model.StatsRecord, capacity),
		sink:   sink,
		logger: logger.With(slog.String("component", "stats_queue")),
	}
}

// Publish помещает запись в очередь. Не блокирует вызывающий код —
// при заполненной очереди запись отбрасывается и инкрементируется
// stats_queue_dropped_total.
func (q *Queue) Publish(rec *model.StatsRecord) {
	select {
	case q.ch <- rec:
	default:
		droppedTotal.Inc()
		q.logger.Warn("очередь статистики переполнена — запись отброшена", slog.String("route", rec.Route))
	}
}

// Start запускает фоновую горутину, последовательно сливающую записи
// в sink до отмены ctx.
func (q *Queue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)
	q.done = make(chan struct{})

	go func() {
		defer close(q.done)
		for {
			select {
			case <-ctx.Done():
				return
			case rec := <-q.ch:
				if err := q.sink.Record(ctx, rec); err != nil {
					q.logger.Error("ошибка записи статистики", slog.String("error", err.Error()))
				}
			}
		}
	}()
}

// Stop сигнализирует горутине завершиться и дожидается её остановки.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
		<-q.done
	}
}

// Len возвращает текущую заполненность очереди (для диагностики/health).
func (q *Queue) Len() int {
	return len(q.ch)
}
