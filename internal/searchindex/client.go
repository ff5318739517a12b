// Пакет searchindex — HTTP-клиент полнотекстового индекса, на который
// Search Engine Adapter (internal/search) транслирует канонические
// запросы. Обмен идёт потоково (application/x-ndjson), устойчивость к
// временным сбоям бэкенда обеспечивает internal/retry.
package searchindex

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/freva-org/freva-nextgen/internal/apierrors"
	"github.com/freva-org/freva-nextgen/internal/domain/model"
	"github.com/freva-org/freva-nextgen/internal/retry"
)

// Cursor — ленивая последовательность документов (pull-based), скрывающая
// курсор конкретного индекса.
type Cursor interface {
	// Next возвращает следующий документ. ok=false означает конец потока.
	Next(ctx context.Context) (doc *model.SearchDocument, ok bool, err error)
	Close() error
}

// Client — клиент полнотекстового индекса.
type Client struct {
	baseURL    string
	core       string
	httpClient *http.Client
}

// NewClient создаёт клиент индекса по его базовому URL и имени core
// (API_SOLR_HOST / API_SOLR_CORE).
func NewClient(baseURL, core string) *Client {
	return &Client{
		baseURL:    baseURL,
		core:       core,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// endpoint строит URL операции внутри core: <base>/<core>/<op>.
func (c *Client) endpoint(op string) string {
	return c.baseURL + "/" + c.core + "/" + op
}

// SearchRequest — параметры запроса к индексу (после трансляции
// фасетов/времени/bbox в native-синтаксис на стороне search-пакета).
type SearchRequest struct {
	Collection  string // multi_version latest-view vs. multi-version коллекция
	NativeQuery string
	Start       int
	BatchSize   int

	// AfterID/BeforeID — keyset-границы для STAC-пагинации:
	// документы строго после/до указанного id в порядке индекса.
	AfterID  string
	BeforeID string
}

// Search выполняет потоковый запрос к индексу и возвращает Cursor по
// ndjson-ответу. Подключение повторяется при сетевых ошибках.
func (c *Client) Search(ctx context.Context, req SearchRequest) (Cursor, error) {
	var resp *http.Response
	err := retry.Do(ctx, isRetryable, func(ctx context.Context) error {
		r, err := c.doSearchRequest(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, apierrors.New(apierrors.CodeBackendUnavailable, fmt.Sprintf("индекс недоступен: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, apierrors.New(apierrors.CodeBackendUnavailable, fmt.Sprintf("индекс вернул статус %d", resp.StatusCode))
	}

	return &ndjsonCursor{body: resp.Body, scanner: bufio.NewScanner(resp.Body)}, nil
}

func (c *Client) doSearchRequest(ctx context.Context, req SearchRequest) (*http.Response, error) {
	q := url.Values{
		"collection": {req.Collection},
		"q":          {req.NativeQuery},
		"start":      {fmt.Sprintf("%d", req.Start)},
		"batch_size": {fmt.Sprintf("%d", req.BatchSize)},
	}
	if req.AfterID != "" {
		q.Set("after_id", req.AfterID)
	}
	if req.BeforeID != "" {
		q.Set("before_id", req.BeforeID)
	}
	target := c.endpoint("search") + "?" + q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("создание запроса к индексу: %w", err)
	}
	return c.httpClient.Do(httpReq)
}

// isRetryable решает, заслуживает ли ошибка повтора: только ошибки
// соединения/таймауты, не HTTP 4xx.
func isRetryable(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}

// ndjsonCursor — Cursor поверх потока application/x-ndjson.
type ndjsonCursor struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func (cur *ndjsonCursor) Next(ctx context.Context) (*model.SearchDocument, bool, error) {
	if !cur.scanner.Scan() {
		if err := cur.scanner.Err(); err != nil {
			return nil, false, fmt.Errorf("чтение потока индекса: %w", err)
		}
		return nil, false, nil
	}

	var doc model.SearchDocument
	if err := json.Unmarshal(cur.scanner.Bytes(), &doc); err != nil {
		return nil, false, fmt.Errorf("декодирование документа индекса: %w", err)
	}
	return &doc, true, nil
}

func (cur *ndjsonCursor) Close() error {
	return cur.body.Close()
}

// FacetCount — пара значение/количество для metadata_search.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// MetadataSearch запрашивает счётчики по фасетам (facet_name → [(value, count)]).
func (c *Client) MetadataSearch(ctx context.Context, nativeQuery string, extended bool) (map[string][]FacetCount, error) {
	q := url.Values{"q": {nativeQuery}}
	if extended {
		q.Set("extended", "true")
	}
	target := c.endpoint("facets") + "?" + q.Encode()

	var result map[string][]FacetCount
	err := retry.Do(ctx, isRetryable, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("индекс вернул статус %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&result)
	})
	if err != nil {
		return nil, apierrors.New(apierrors.CodeBackendUnavailable, fmt.Sprintf("индекс недоступен: %v", err))
	}
	return result, nil
}

// Insert записывает документы в коллекцию индекса. Индекс — авторитетное
// хранилище пользовательских записей; вставка повторяется при
// сетевых сбоях так же, как поисковые запросы.
func (c *Client) Insert(ctx context.Context, collection string, docs []*model.SearchDocument) error {
	body, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("сериализация документов: %w", err)
	}
	target := c.endpoint("update") + "?" + url.Values{"collection": {collection}}.Encode()

	err = retry.Do(ctx, isRetryable, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("индекс вернул статус %d", resp.StatusCode)
		}
		return nil
	})
	if err != nil {
		return apierrors.New(apierrors.CodeBackendUnavailable, fmt.Sprintf("индекс недоступен: %v", err))
	}
	return nil
}

// Delete удаляет из коллекции документы, соответствующие native-запросу,
// и возвращает количество удалённых.
func (c *Client) Delete(ctx context.Context, collection, nativeQuery string) (int, error) {
	body, err := json.Marshal(map[string]string{"q": nativeQuery})
	if err != nil {
		return 0, fmt.Errorf("сериализация запроса удаления: %w", err)
	}
	target := c.endpoint("delete") + "?" + url.Values{"collection": {collection}}.Encode()

	var result struct {
		Deleted int `json:"deleted"`
	}
	err = retry.Do(ctx, isRetryable, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("индекс вернул статус %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&result)
	})
	if err != nil {
		return 0, apierrors.New(apierrors.CodeBackendUnavailable, fmt.Sprintf("индекс недоступен: %v", err))
	}
	return result.Deleted, nil
}

// Count запрашивает общее количество документов, соответствующих запросу.
func (c *Client) Count(ctx context.Context, nativeQuery string) (int, error) {
	q := url.Values{"q": {nativeQuery}}
	target := c.endpoint("count") + "?" + q.Encode()

	var result struct {
		Count int `json:"count"`
	}
	err := retry.Do(ctx, isRetryable, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("индекс вернул статус %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&result)
	})
	if err != nil {
		return 0, apierrors.New(apierrors.CodeBackendUnavailable, fmt.Sprintf("индекс недоступен: %v", err))
	}
	return result.Count, nil
}
