// backend/src/storage/artifacts.go
package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/username/ssnreport/backend/src/config"
	"github.com/username/ssnreport/backend/src/logger"
)

// ArtifactStore persists the two durable artifacts of a presentation: the
// original uploaded spreadsheet and the generated wire payload. Names are
// deterministic (presentation id + period + timestamp) so nothing collides
// and everything stays traceable.
type ArtifactStore interface {
	SaveSpreadsheet(presentationID int64, cronograma string, data []byte) (string, error)
	SaveWirePayload(presentationID int64, cronograma string, data []byte) (string, error)
}

// NewArtifactStore picks the provider from configuration, falling back to the
// discard store when the chosen provider is not fully configured.
func NewArtifactStore() ArtifactStore {
	if config.Cfg == nil {
		logger.L.Error("Configuration (config.Cfg) is nil. Artifact store will default to discard.")
		return &DiscardArtifactStore{}
	}

	provider := strings.ToLower(config.Cfg.ArtifactProvider)
	logger.L.Info("Initializing artifact store", "provider", provider)

	switch provider {
	case "minio":
		if config.Cfg.MinioEndpoint == "" || config.Cfg.MinioAccessKey == "" || config.Cfg.MinioSecretKey == "" {
			logger.L.Warn("MinIO configuration incomplete (endpoint, access key or secret key missing). Falling back to local artifact store.")
			return &LocalArtifactStore{Dir: config.Cfg.ArtifactDir}
		}
		client, err := minio.New(config.Cfg.MinioEndpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(config.Cfg.MinioAccessKey, config.Cfg.MinioSecretKey, ""),
			Secure: config.Cfg.MinioUseSSL,
		})
		if err != nil {
			logger.L.Error("Failed to create MinIO client. Falling back to local artifact store.", "error", err)
			return &LocalArtifactStore{Dir: config.Cfg.ArtifactDir}
		}
		store := &MinioArtifactStore{client: client, bucket: config.Cfg.MinioBucket}
		if err := store.ensureBucket(); err != nil {
			logger.L.Error("Failed to ensure MinIO bucket. Falling back to local artifact store.", "bucket", config.Cfg.MinioBucket, "error", err)
			return &LocalArtifactStore{Dir: config.Cfg.ArtifactDir}
		}
		logger.L.Info("MinIO artifact store initialized", "endpoint", config.Cfg.MinioEndpoint, "bucket", config.Cfg.MinioBucket)
		return store
	case "local":
		return &LocalArtifactStore{Dir: config.Cfg.ArtifactDir}
	default:
		logger.L.Info("Defaulting to discard artifact store.")
		return &DiscardArtifactStore{}
	}
}

func artifactName(presentationID int64, cronograma, suffix string) string {
	period := strings.NewReplacer("/", "-", " ", "").Replace(cronograma)
	return fmt.Sprintf("%d_%s_%d_%s", presentationID, period, time.Now().Unix(), suffix)
}

type LocalArtifactStore struct {
	Dir string
}

func (s *LocalArtifactStore) save(name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating artifact directory %s: %w", s.Dir, err)
	}
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing artifact %s: %w", path, err)
	}
	logger.L.Info("Artifact saved", "path", path, "bytes", len(data))
	return path, nil
}

func (s *LocalArtifactStore) SaveSpreadsheet(presentationID int64, cronograma string, data []byte) (string, error) {
	return s.save(artifactName(presentationID, cronograma, "source.xlsx"), data)
}

func (s *LocalArtifactStore) SaveWirePayload(presentationID int64, cronograma string, data []byte) (string, error) {
	return s.save(artifactName(presentationID, cronograma, "wire.json"), data)
}

type MinioArtifactStore struct {
	client *minio.Client
	bucket string
}

func (s *MinioArtifactStore) ensureBucket() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	}
	return nil
}

func (s *MinioArtifactStore) save(name, contentType string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("uploading artifact %s to bucket %s: %w", name, s.bucket, err)
	}
	path := fmt.Sprintf("s3://%s/%s", s.bucket, name)
	logger.L.Info("Artifact uploaded", "path", path, "bytes", len(data))
	return path, nil
}

func (s *MinioArtifactStore) SaveSpreadsheet(presentationID int64, cronograma string, data []byte) (string, error) {
	return s.save(artifactName(presentationID, cronograma, "source.xlsx"),
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (s *MinioArtifactStore) SaveWirePayload(presentationID int64, cronograma string, data []byte) (string, error) {
	return s.save(artifactName(presentationID, cronograma, "wire.json"), "application/json", data)
}

// DiscardArtifactStore logs and drops artifacts. Used in tests and in
// environments without durable storage configured.
type DiscardArtifactStore struct{}

func (s *DiscardArtifactStore) SaveSpreadsheet(presentationID int64, cronograma string, data []byte) (string, error) {
	logger.L.Debug("Discarding spreadsheet artifact", "presentationID", presentationID, "bytes", len(data))
	return artifactName(presentationID, cronograma, "source.xlsx"), nil
}

func (s *DiscardArtifactStore) SaveWirePayload(presentationID int64, cronograma string, data []byte) (string, error) {
	logger.L.Debug("Discarding wire payload artifact", "presentationID", presentationID, "bytes", len(data))
	return artifactName(presentationID, cronograma, "wire.json"), nil
}
