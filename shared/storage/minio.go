// Package storage keeps NPO logos in a MinIO bucket.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"nko-map-backend/shared/apperr"
	"nko-map-backend/shared/config"
)

const (
	logoPrefix    = "logos/"
	defaultRegion = "us-east-1"
	sniffLen      = 512
)

var logoTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
}

// LogoStore uploads logos and hands out presigned download links.
type LogoStore struct {
	client     *minio.Client
	bucketName string
	maxBytes   int64
	presignTTL time.Duration
	logger     *zap.Logger
}

// NewClient builds a MinIO client from MINIO_SERVER_URL. It does not
// contact the server.
func NewClient(cfg *config.Config) (*minio.Client, error) {
	parsedURL, err := url.Parse(cfg.MinIOServerURL)
	if err != nil || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid MinIO endpoint %q", cfg.MinIOServerURL)
	}

	useSSL := cfg.MinIOUseSSL || parsedURL.Scheme == "https"
	client, err := minio.New(parsedURL.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIORootUser, cfg.MinIORootPassword, ""),
		Secure: useSSL,
		Region: defaultRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return client, nil
}

func NewLogoStore(client *minio.Client, cfg *config.Config, logger *zap.Logger) *LogoStore {
	return &LogoStore{
		client:     client,
		bucketName: cfg.MinIOBucketName,
		maxBytes:   cfg.LogoMaxBytes,
		presignTTL: cfg.PresignTTL,
		logger:     logger,
	}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *LogoStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		s.logger.Info("minio bucket ready", zap.String("bucket", s.bucketName))
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: defaultRegion}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	s.logger.Info("minio bucket created", zap.String("bucket", s.bucketName))
	return nil
}

// Upload stores a logo for owner and returns its object key. size is the
// declared length of r; the content type is sniffed from the first bytes.
func (s *LogoStore) Upload(ctx context.Context, owner uuid.UUID, r io.Reader, size int64) (string, error) {
	if size <= 0 {
		return "", apperr.Validation("Файл пуст")
	}
	if size > s.maxBytes {
		return "", apperr.Validation(fmt.Sprintf("Размер файла не должен превышать %d КБ", s.maxBytes/1024))
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]

	contentType, ext, err := DetectLogoType(head)
	if err != nil {
		return "", err
	}

	key := ObjectKey(owner, ext)
	body := io.MultiReader(bytes.NewReader(head), r)
	_, err = s.client.PutObject(ctx, s.bucketName, key, io.LimitReader(body, size), size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload logo: %w", err)
	}

	s.logger.Info("logo uploaded",
		zap.String("key", key),
		zap.String("owner", owner.String()),
		zap.Int64("size", size),
	)
	return key, nil
}

// PresignedURL returns a time-limited GET link for key.
func (s *LogoStore) PresignedURL(ctx context.Context, key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucketName, key, s.presignTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign logo url: %w", err)
	}
	return u.String(), nil
}

// Ping checks that the bucket is reachable.
func (s *LogoStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucketName)
	return err
}

// DetectLogoType accepts png, jpeg and webp images.
func DetectLogoType(head []byte) (contentType, ext string, err error) {
	contentType = http.DetectContentType(head)
	ext, ok := logoTypes[contentType]
	if !ok {
		return "", "", apperr.Validation("Допустимые форматы логотипа: PNG, JPEG, WEBP")
	}
	return contentType, ext, nil
}

func ObjectKey(owner uuid.UUID, ext string) string {
	return logoPrefix + owner.String() + "/" + uuid.NewString() + "." + ext
}

// ValidateKey rejects keys outside the logo prefix.
func ValidateKey(key string) error {
	clean := path.Clean("/" + key)[1:]
	if clean != key || !strings.HasPrefix(key, logoPrefix) {
		return apperr.NotFound("Файл не найден")
	}
	return nil
}
