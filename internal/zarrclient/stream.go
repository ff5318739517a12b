// Пакет zarrclient — отдача байтов Zarr-хранилища клиенту:
// Range/ETag-совместимая раздача чанков, прочитанных из Redis через
// internal/zarr.Broker, вместо локального диска.
package zarrclient

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/freva-org/freva-nextgen/internal/apierrors"
	"github.com/freva-org/freva-nextgen/internal/zarr"
)

// StreamService — сервис отдачи чанков Zarr-хранилища по HTTP.
type StreamService struct {
	broker *zarr.Broker
	logger *slog.Logger
}

// NewStreamService создаёт сервис раздачи чанков.
func NewStreamService(broker *zarr.Broker, logger *slog.Logger) *StreamService {
	return &StreamService{
		broker: broker,
		logger: logger.With(slog.String("component", "zarr_stream")),
	}
}

var chunkIndexRe = regexp.MustCompile(`^\d+(\.\d+)*$`)

// ClassifyKey проверяет форму ключа внутри .zarr-дерева и возвращает
// Content-Type ответа: application/json для метаданных (.zmetadata,
// .zgroup, .zattrs, <var>/.zarray, <var>/.zattrs) и
// application/octet-stream для индексов чанков <var>/<i>.<j>….
// Ключи вне этих форм — в частности .zmetadata/.zgroup не в корне —
// отклоняются как INVALID_INPUT.
func ClassifyKey(key string) (string, error) {
	parts := strings.Split(key, "/")
	for _, p := range parts {
		if p == "" {
			return "", apierrors.New(apierrors.CodeInvalidInput, fmt.Sprintf("некорректный ключ Zarr %q", key))
		}
	}

	last := parts[len(parts)-1]
	switch last {
	case ".zmetadata", ".zgroup":
		if len(parts) != 1 {
			return "", apierrors.New(apierrors.CodeInvalidInput, fmt.Sprintf("ключ %q допустим только в корне хранилища", last))
		}
		return "application/json", nil
	case ".zattrs":
		return "application/json", nil
	case ".zarray":
		if len(parts) < 2 {
			return "", apierrors.New(apierrors.CodeInvalidInput, ".zarray допустим только на уровне переменной")
		}
		return "application/json", nil
	}

	if len(parts) >= 2 && chunkIndexRe.MatchString(last) {
		return "application/octet-stream", nil
	}
	return "", apierrors.New(apierrors.CodeInvalidInput, fmt.Sprintf("некорректный ключ Zarr %q", key))
}

// ServeChunk отдаёт один ключ Zarr-хранилища клиенту через
// http.ServeContent: поддерживает Range requests (206) и If-None-Match
// (304) прозрачно для клиента, как при обычной файловой раздаче.
// Отсутствующий ключ — NOT_FOUND: worker пишет чанки по мере готовности,
// и клиент сам решает, повторять ли запрос.
func (s *StreamService) ServeChunk(w http.ResponseWriter, r *http.Request, token, chunkPath string) error {
	contentType, err := ClassifyKey(chunkPath)
	if err != nil {
		return err
	}

	data, err := s.broker.LoadChunk(r.Context(), token, chunkPath)
	if err != nil {
		return err
	}

	sum := sha256.Sum256(data)
	etag := hex.EncodeToString(sum[:8])

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("ETag", fmt.Sprintf("%q", etag))
	w.Header().Set("Accept-Ranges", "bytes")

	http.ServeContent(w, r, chunkPath, time.Now(), bytes.NewReader(data))

	s.logger.Debug("чанк отдан", slog.String("token", token), slog.String("chunk", chunkPath), slog.Int("bytes", len(data)))
	return nil
}

// ListChunks возвращает относительные пути всех ключей задания —
// используется для построения листинга .zarr-дерева.
func (s *StreamService) ListChunks(r *http.Request, token string) ([]string, error) {
	return s.broker.ListChunks(r.Context(), token)
}
