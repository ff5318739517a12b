// Пакет zarr — Zarr Broker: постановка заданий конвертации в
// очередь cache/broker, отслеживание статуса через Redis-ключи,
// WATCH/MULTI compare-and-swap переходов, хранение байтов чанков.
// HMAC-подпись share-ссылок реализована в internal/zarrclient.
package zarr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/freva-org/freva-nextgen/internal/apierrors"
	"github.com/freva-org/freva-nextgen/internal/cache"
	"github.com/freva-org/freva-nextgen/internal/domain/model"
)

// Схема ключей разделяется с worker'ом: статус задания живёт под
// zarr:<token>:status, байты чанков — под zarr:<token>:blob:<key>.
func jobKey(token string) string { return "zarr:" + token + ":status" }

// Broker — фасад над Redis, реализующий жизненный цикл ZarrJob.
type Broker struct {
	client  *cache.Client
	channel string
	logger  *slog.Logger
}

// NewBroker создаёт Zarr Broker, публикующий задания в заданный канал
// cache/broker (по умолчанию "zarr-requests", см. API_WORKER).
func NewBroker(client *cache.Client, channel string, logger *slog.Logger) *Broker {
	return &Broker{
		client:  client,
		channel: channel,
		logger:  logger.With(slog.String("component", "zarr_broker")),
	}
}

// Submit ставит задание конвертации в очередь. Если задание с таким же
// идемпотентным токеном уже существует и не истекло, возвращает его без
// повторной публикации.
func (b *Broker) Submit(ctx context.Context, owner string, paths []string, opts model.ConvertOptions) (*model.ZarrJob, error) {
	if len(paths) == 0 {
		return nil, apierrors.New(apierrors.CodeInvalidInput, "список путей для конвертации пуст")
	}

	ttl := opts.TTLSeconds
	if ttl <= 0 {
		ttl = model.DefaultTTLSeconds
	}

	token := DeriveToken(owner, paths, opts)

	now := time.Now().UTC()
	job := &model.ZarrJob{
		Token:     token,
		Status:    model.JobQueued,
		Reason:    "submitted",
		Owner:     owner,
		CreatedAt: now,
		Expiry:    now.Add(time.Duration(ttl) * time.Second),
		Paths:     paths,
		Options:   opts,
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("сериализация задания: %w", err)
	}

	// Set-if-not-exists гарантирует, что запись задания создаётся ровно
	// один раз: повторный convert с теми же входами возвращает уже
	// существующее задание без повторной публикации.
	created, err := b.client.Raw().SetNX(ctx, jobKey(token), payload, time.Duration(ttl)*time.Second).Result()
	if err != nil {
		return nil, apierrors.New(apierrors.CodeBrokerUnavailable, "не удалось сохранить задание")
	}
	if !created {
		existing, err := b.Get(ctx, token)
		if err != nil {
			return nil, err
		}
		if !existing.Expired(time.Now()) {
			b.logger.Debug("идемпотентное задание уже существует", slog.String("token", token))
			return existing, nil
		}
		// Запись пережила собственный Expiry (рассинхрон часов) — перезаписываем.
		if err := b.save(ctx, job, time.Duration(ttl)*time.Second); err != nil {
			return nil, err
		}
	}

	msg, err := json.Marshal(map[string]any{"token": token, "paths": paths, "options": opts})
	if err != nil {
		return nil, fmt.Errorf("сериализация сообщения worker'у: %w", err)
	}
	if err := b.client.Raw().Publish(ctx, b.channel, msg).Err(); err != nil {
		b.logger.Error("не удалось опубликовать задание в канал worker'ов", slog.String("error", err.Error()))
		if delErr := b.client.Raw().Del(ctx, jobKey(token)).Err(); delErr != nil {
			b.logger.Warn("не удалось удалить статус после сбоя публикации", slog.String("error", delErr.Error()))
		}
		return nil, apierrors.New(apierrors.CodeBrokerUnavailable, "канал обработки заданий недоступен")
	}

	return job, nil
}

// Get возвращает задание по токену.
func (b *Broker) Get(ctx context.Context, token string) (*model.ZarrJob, error) {
	raw, err := b.client.Raw().Get(ctx, jobKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apierrors.New(apierrors.CodeNotFound, fmt.Sprintf("задание %q не найдено", token))
		}
		return nil, apierrors.New(apierrors.CodeBrokerUnavailable, "хранилище заданий недоступно")
	}

	var job model.ZarrJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("десериализация задания: %w", err)
	}
	return &job, nil
}

func (b *Broker) save(ctx context.Context, job *model.ZarrJob, ttl time.Duration) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("сериализация задания: %w", err)
	}
	if err := b.client.Raw().Set(ctx, jobKey(job.Token), payload, ttl).Err(); err != nil {
		return apierrors.New(apierrors.CodeBrokerUnavailable, "не удалось сохранить задание")
	}
	return nil
}

// Transition выполняет compare-and-swap перехода статуса задания через
// WATCH/MULTI: конкурентные worker'ы, одновременно пытающиеся завершить
// одно задание, не затирают результат друг друга.
func (b *Broker) Transition(ctx context.Context, token string, target model.JobStatus, reason string) (*model.ZarrJob, error) {
	key := jobKey(token)
	rdb := b.client.Raw()

	var result *model.ZarrJob

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return apierrors.New(apierrors.CodeNotFound, fmt.Sprintf("задание %q не найдено", token))
			}
			return err
		}

		var job model.ZarrJob
		if err := json.Unmarshal(raw, &job); err != nil {
			return fmt.Errorf("десериализация задания: %w", err)
		}

		if !CanTransitionTo(job.Status, target) {
			return &TransitionError{From: job.Status, To: target}
		}

		job.Status = target
		job.Reason = reason

		ttl := time.Until(job.Expiry)
		if ttl <= 0 {
			ttl = time.Second
		}

		payload, err := json.Marshal(&job)
		if err != nil {
			return fmt.Errorf("сериализация задания: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, ttl)
			return nil
		})
		if err != nil {
			return err
		}

		result = &job
		return nil
	}

	err := rdb.Watch(ctx, txf, key)
	if err != nil {
		var te *TransitionError
		if errors.As(err, &te) {
			return nil, apierrors.New(apierrors.CodeConflict, te.Error())
		}
		var kind *apierrors.Kind
		if errors.As(err, &kind) {
			return nil, err
		}
		return nil, apierrors.New(apierrors.CodeBrokerUnavailable, "ошибка перехода статуса задания")
	}

	return result, nil
}

// StoreChunk сохраняет байты одного чанка Zarr-хранилища в Redis под
// TTL задания. chunkPath — относительный путь внутри .zarr-дерева
// (например "var/0.0.0" или ".zattrs").
func (b *Broker) StoreChunk(ctx context.Context, token, chunkPath string, data []byte, ttl time.Duration) error {
	key := chunkKey(token, chunkPath)
	if err := b.client.Raw().Set(ctx, key, data, ttl).Err(); err != nil {
		return apierrors.New(apierrors.CodeBrokerUnavailable, "не удалось сохранить чанк")
	}
	return nil
}

// LoadChunk читает байты чанка по токену и относительному пути.
func (b *Broker) LoadChunk(ctx context.Context, token, chunkPath string) ([]byte, error) {
	key := chunkKey(token, chunkPath)
	data, err := b.client.Raw().Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apierrors.New(apierrors.CodeNotFound, fmt.Sprintf("чанк %q не найден", chunkPath))
		}
		return nil, apierrors.New(apierrors.CodeBrokerUnavailable, "хранилище чанков недоступно")
	}
	return data, nil
}

// ListChunks перечисляет ключи чанков, принадлежащих токену (для
// генерации .zmetadata / directory listing в zarrclient).
func (b *Broker) ListChunks(ctx context.Context, token string) ([]string, error) {
	pattern := chunkKeyPrefix(token) + "*"
	var out []string
	iter := b.client.Raw().Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		out = append(out, iter.Val()[len(chunkKeyPrefix(token)):])
	}
	if err := iter.Err(); err != nil {
		return nil, apierrors.New(apierrors.CodeBrokerUnavailable, "ошибка перечисления чанков")
	}
	return out, nil
}

func chunkKeyPrefix(token string) string { return "zarr:" + token + ":blob:" }
func chunkKey(token, path string) string { return chunkKeyPrefix(token) + path }
