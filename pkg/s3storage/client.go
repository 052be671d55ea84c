// Клиент S3-совместимого хранилища: документы для индексации и фото визиток.

package s3storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ilkoid/tripmate/pkg/apperr"
	"github.com/ilkoid/tripmate/pkg/config"
)

// Scheme: префикс ссылок на объекты S3.
const Scheme = "s3://"

// ObjectStore: операции с хранилищем, нужные приложению.
// Используется для подмены в тестах.
type ObjectStore interface {
	ListFiles(ctx context.Context, prefix string) ([]StoredObject, error)
	DownloadFile(ctx context.Context, key string) ([]byte, error)
}

// Client работает с одним бакетом.
type Client struct {
	api    *minio.Client
	bucket string
}

var _ ObjectStore = (*Client)(nil)

// StoredObject - сырой объект из S3
type StoredObject struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Location: бакет и ключ из ссылки s3://bucket/key.
type Location struct {
	Bucket string
	Key    string
}

// IsURI сообщает, является ли строка ссылкой s3://.
func IsURI(s string) bool {
	return strings.HasPrefix(s, Scheme)
}

// ParseURI разбирает ссылку s3://bucket/key. Ключ может быть пустым
// (весь бакет) или префиксом "папки".
func ParseURI(uri string) (Location, error) {
	if !IsURI(uri) {
		return Location{}, fmt.Errorf("not an s3 uri: %q", uri)
	}
	rest := strings.TrimPrefix(uri, Scheme)
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Location{}, fmt.Errorf("s3 uri has no bucket: %q", uri)
	}
	return Location{Bucket: bucket, Key: key}, nil
}

// New создает клиент, используя наш конфиг
func New(cfg config.S3Config) (*Client, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("s3.endpoint is not configured")
	}
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	return &Client{
		api:    minioClient,
		bucket: cfg.Bucket,
	}, nil
}

// Bucket возвращает имя бакета клиента.
func (c *Client) Bucket() string {
	return c.bucket
}

// ForBucket возвращает клиент того же соединения для другого бакета.
func (c *Client) ForBucket(bucket string) *Client {
	if bucket == "" || bucket == c.bucket {
		return c
	}
	return &Client{api: c.api, bucket: bucket}
}

// ListFiles возвращает все файлы по префиксу. Пустой результат - ошибка,
// чтобы опечатка в пути сразу была видна.
func (c *Client) ListFiles(ctx context.Context, prefix string) ([]StoredObject, error) {
	var objects []StoredObject

	opts := minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}

	for obj := range c.api.ListObjects(ctx, c.bucket, opts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects in '%s': %w", c.bucket, obj.Err)
		}
		// "Папки" пропускаем
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		objects = append(objects, StoredObject{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}

	if len(objects) == 0 {
		return nil, fmt.Errorf("path '%s' in bucket '%s': %w", prefix, c.bucket, apperr.ErrNotFound)
	}

	return objects, nil
}

// DownloadFile скачивает объект целиком в память
func (c *Client) DownloadFile(ctx context.Context, key string) ([]byte, error) {
	obj, err := c.api.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, obj); err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}

	return buf.Bytes(), nil
}

// Fetch скачивает объект по ссылке s3://bucket/key.
func (c *Client) Fetch(ctx context.Context, uri string) ([]byte, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	if loc.Key == "" {
		return nil, fmt.Errorf("s3 uri has no object key: %q", uri)
	}
	return c.ForBucket(loc.Bucket).DownloadFile(ctx, loc.Key)
}
