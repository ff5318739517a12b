// Пакет retry реализует повтор операций с экспоненциальной задержкой:
// временно недоступный бэкенд опрашивается до 3 раз с задержками 100,
// 400 и 1600 мс, после чего ошибка пробрасывается наверх.
package retry

import (
	"context"
	"time"
)

// Delays — последовательность задержек перед повторными попытками.
// Длина Delays+1 — максимальное число попыток.
var Delays = []time.Duration{100 * time.Millisecond, 400 * time.Millisecond, 1600 * time.Millisecond}

// Do выполняет fn, повторяя при ошибках, для которых shouldRetry(err)
// возвращает true, с задержками из Delays. Возвращает ошибку последней
// попытки, если все попытки исчерпаны, либо немедленно возвращает
// ошибку, для которой shouldRetry возвращает false.
func Do(ctx context.Context, shouldRetry func(error) bool, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !shouldRetry(lastErr) {
			return lastErr
		}
		if attempt >= len(Delays) {
			return lastErr
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(Delays[attempt]):
		}
	}
}
