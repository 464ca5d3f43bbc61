// Package photostore is the development implementation of the photo
// contract: presigned PUT targets against a MinIO/S3 bucket and a commit
// phase that verifies the blobs actually landed. Batches are replayed from
// an idempotency cache so a retried call has effect at most once.
package photostore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"rentora/internal/marketplace"
)

const presignExpiry = 15 * time.Minute

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type S3Store struct {
	client     *minio.Client
	bucketName string
	region     string
	initOnce   sync.Once
	initErr    error

	presignReplay  *lru.Cache[string, []marketplace.PresignTarget]
	completeReplay *lru.Cache[string, marketplace.CompleteReceipt]
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	presignReplay, err := lru.New[string, []marketplace.PresignTarget](1024)
	if err != nil {
		return nil, err
	}
	completeReplay, err := lru.New[string, marketplace.CompleteReceipt](1024)
	if err != nil {
		return nil, err
	}

	return &S3Store{
		client:         client,
		bucketName:     bucket,
		region:         region,
		presignReplay:  presignReplay,
		completeReplay: completeReplay,
	}, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("store is nil")
	}
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucketName)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

func (s *S3Store) PresignPhotos(ctx context.Context, listingID string, reqs []marketplace.PresignRequest, idempotencyKey string) ([]marketplace.PresignTarget, error) {
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		if cached, ok := s.presignReplay.Get(key); ok {
			return cached, nil
		}
	}
	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return nil, fmt.Errorf("listing id is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	targets := make([]marketplace.PresignTarget, 0, len(reqs))
	for _, req := range reqs {
		blobPath := objectKey(listingID, req.ClientUploadID)
		u, err := s.client.PresignedPutObject(ctx, s.bucketName, blobPath, presignExpiry)
		if err != nil {
			return nil, fmt.Errorf("presign %s: %w", req.ClientUploadID, err)
		}
		targets = append(targets, marketplace.PresignTarget{
			ClientUploadID: req.ClientUploadID,
			UploadURL:      u.String(),
			BlobPath:       blobPath,
			ExpiresAt:      time.Now().Add(presignExpiry),
		})
	}
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		s.presignReplay.Add(key, targets)
	}
	return targets, nil
}

func (s *S3Store) CompletePhotos(ctx context.Context, listingID string, items []marketplace.CompleteItem, idempotencyKey string) (marketplace.CompleteReceipt, error) {
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		if cached, ok := s.completeReplay.Get(key); ok {
			return cached, nil
		}
	}
	if err := s.ensureBucket(ctx); err != nil {
		return marketplace.CompleteReceipt{}, fmt.Errorf("ensure bucket: %w", err)
	}

	receipt := marketplace.CompleteReceipt{PreviewURLs: make(map[string]string, len(items))}
	for _, item := range items {
		if _, err := s.client.StatObject(ctx, s.bucketName, item.BlobPath, minio.StatObjectOptions{}); err != nil {
			return marketplace.CompleteReceipt{}, fmt.Errorf("blob %s missing: %w", item.BlobPath, err)
		}
		receipt.PhotoIDs = append(receipt.PhotoIDs, uuid.NewString())
		receipt.AcceptedCount++
		preview, err := s.PreviewURL(ctx, item.BlobPath)
		if err != nil {
			return marketplace.CompleteReceipt{}, fmt.Errorf("preview url for %s: %w", item.BlobPath, err)
		}
		receipt.PreviewURLs[item.ClientUploadID] = preview
	}
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		s.completeReplay.Add(key, receipt)
	}
	return receipt, nil
}

// PreviewURL issues a short-lived read URL for a stored blob.
func (s *S3Store) PreviewURL(ctx context.Context, blobPath string) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", err
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, blobPath, time.Hour, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func objectKey(listingID, clientUploadID string) string {
	return fmt.Sprintf("listings/%s/%s", listingID, sanitize(clientUploadID))
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, s)
}
