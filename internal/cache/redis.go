// Пакет cache — обёртка над Redis: TTL key-value хранилище для
// ZarrJob/chunks, канал публикации заданий конвертации и
// compare-and-swap переходы состояния через WATCH/MULTI.
package cache

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Client — тонкая обёртка над *redis.Client с конфигурацией TLS.
type Client struct {
	rdb *redis.Client
}

// Options — параметры подключения к Redis.
type Options struct {
	Addr     string
	Username string
	Password string
	CertFile string
	KeyFile  string
}

// New создаёт клиент Redis. Если заданы CertFile/KeyFile, подключение
// устанавливается через TLS с клиентским сертификатом.
func New(opts Options) (*Client, error) {
	redisOpts := &redis.Options{
		Addr:     opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
	}

	if opts.CertFile != "" && opts.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("загрузка клиентского сертификата Redis: %w", err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil {
			pool = x509.NewCertPool()
		}
		redisOpts.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			RootCAs:      pool,
		}
	}

	return &Client{rdb: redis.NewClient(redisOpts)}, nil
}

// Raw возвращает сырой *redis.Client для операций, не покрытых обёрткой
// (например, WATCH/MULTI переходов состояния ZarrJob в internal/zarr).
func (c *Client) Raw() *redis.Client { return c.rdb }

// Ping проверяет доступность Redis (используется readiness checker'ом).
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close закрывает соединение.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// CheckReady — readiness checker для /ready.
func (c *Client) CheckReady(ctx context.Context) (string, string) {
	if err := c.Ping(ctx); err != nil {
		return "fail", err.Error()
	}
	return "ok", ""
}
