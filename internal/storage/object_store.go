package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"impactflow/api/internal/config"
)

// ObjectStore holds profile images in a single bucket. The account service
// uses it as the best-effort delete capability for superseded images; a nil
// *ObjectStore is valid and turns every call into a no-op.
type ObjectStore struct {
	client *minio.Client
	cfg    config.StorageConfig
}

func NewObjectStore(cfg config.StorageConfig) (*ObjectStore, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &ObjectStore{client: client, cfg: cfg}, nil
}

// EnsureBucket creates the profile-image bucket if it does not exist yet.
func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", s.cfg.Bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.cfg.Bucket, err)
		}
	}
	return nil
}

// Remove deletes the object behind an image reference if the reference points
// into our bucket. References elsewhere (external URLs) are ignored.
func (s *ObjectStore) Remove(ctx context.Context, imageRef string) error {
	if s == nil {
		return nil
	}
	key, ok := s.objectKey(imageRef)
	if !ok {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

// objectKey extracts the object key from an image reference of the form
// ".../<bucket>/<key>". Anything else is not ours to delete.
func (s *ObjectStore) objectKey(imageRef string) (string, bool) {
	marker := "/" + s.cfg.Bucket + "/"
	idx := strings.Index(imageRef, marker)
	if idx < 0 {
		return "", false
	}
	key := imageRef[idx+len(marker):]
	if key == "" {
		return "", false
	}
	return key, true
}
