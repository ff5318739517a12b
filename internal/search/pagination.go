package search

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// MaxBatchSizeStreaming — верхняя граница batch_size для потоковых
// ответов data_search.
const MaxBatchSizeStreaming = 10000

// MaxBatchSizeDefault — верхняя граница batch_size для непотоковых
// ответов.
const MaxBatchSizeDefault = 1000

// ValidateBatchSize проверяет batch_size против применимого предела.
func ValidateBatchSize(batchSize int, streaming bool) error {
	if batchSize <= 0 {
		return fmt.Errorf("batch_size должен быть положительным, получено %d", batchSize)
	}
	limit := MaxBatchSizeDefault
	if streaming {
		limit = MaxBatchSizeStreaming
	}
	if batchSize > limit {
		return fmt.Errorf("batch_size=%d превышает предел %d", batchSize, limit)
	}
	return nil
}

// StacDirection — направление STAC-курсора.
type StacDirection string

const (
	StacNext StacDirection = "next"
	StacPrev StacDirection = "prev"
)

// StacCursor — декодированный opaque-токен STAC-пагинации:
// direction:collection_id:item_id.
type StacCursor struct {
	Direction  StacDirection
	Collection string
	ItemID     string
}

// EncodeStacCursor кодирует курсор в непрозрачный base64url-токен.
func EncodeStacCursor(c StacCursor) string {
	raw := fmt.Sprintf("%s:%s:%s", c.Direction, c.Collection, c.ItemID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeStacCursor декодирует и валидирует токен курсора.
func DecodeStacCursor(token string) (StacCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return StacCursor{}, fmt.Errorf("некорректная кодировка токена курсора: %w", err)
	}

	parts := strings.SplitN(string(raw), ":", 3)
	if len(parts) != 3 {
		return StacCursor{}, fmt.Errorf("токен курсора должен состоять из 3 частей, получено %d", len(parts))
	}

	dir := StacDirection(parts[0])
	if dir != StacNext && dir != StacPrev {
		return StacCursor{}, fmt.Errorf("неизвестное направление курсора %q", parts[0])
	}

	return StacCursor{Direction: dir, Collection: parts[1], ItemID: parts[2]}, nil
}

// ValidateStacLimit проверяет limit страницы STAC (1 ≤ limit ≤ 1000).
func ValidateStacLimit(limit int) error {
	if limit < 1 || limit > 1000 {
		return fmt.Errorf("limit=%d вне диапазона [1,1000]", limit)
	}
	return nil
}
