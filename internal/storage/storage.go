// Package storage содержит шлюз объектного хранилища для бинарных файлов версий.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"dealdocs/internal/config"
)

var ErrObjectNotFound = errors.New("object not found")

// Object определяет интерфейс для объектов хранилища
type Object interface {
	io.ReadCloser
	ContentLength() int64
	ContentType() string
}

type object struct {
	io.ReadCloser
	contentLength int64
	contentType   string
}

func (o *object) ContentLength() int64 {
	return o.contentLength
}

func (o *object) ContentType() string {
	return o.contentType
}

// Storage определяет интерфейс для работы с объектным хранилищем
type Storage interface {
	// Upload возвращает локатор загруженного объекта
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) (Object, error)
	Copy(ctx context.Context, srcKey, dstKey string) error
	// Delete отсутствующего объекта считается успешным
	Delete(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// New создает клиента хранилища по драйверу из конфигурации
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case "", config.StorageDriverS3:
		return NewS3Client(ctx, cfg)
	case config.StorageDriverMinio:
		return NewMinioClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

// VersionPath формирует ключ объекта версии из идентификаторов сделки, документа и версии
func VersionPath(dealID, documentID, versionID uuid.UUID, fileName string) string {
	return path.Join(
		"deals", dealID.String(),
		"documents", documentID.String(),
		versionID.String(),
		SanitizeFileName(fileName),
	)
}

func PreviewPath(versionID uuid.UUID) string {
	return path.Join("previews", versionID.String()+".jpg")
}

// SanitizeFileName оставляет в имени только безопасные для ключа символы
func SanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	cleaned := strings.Trim(b.String(), ".")
	if cleaned == "" {
		return "file"
	}
	return cleaned
}
