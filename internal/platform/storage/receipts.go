package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const (
	defaultUploadExpiry   = 15 * time.Minute
	defaultDownloadExpiry = 5 * time.Minute
	maxReceiptSize        = 10 << 20
)

var (
	ErrBucketRequired      = errors.New("storage: bucket name is required")
	ErrContentTypeDenied   = errors.New("storage: content type not allowed")
	receiptContentTypes    = []string{"application/pdf", "image/jpeg", "image/png", "image/webp"}
	unsafeFileNameSegments = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// SignedURL describes a presigned request the client performs directly against Cloud Storage.
type SignedURL struct {
	URL        string            `json:"url"`
	Method     string            `json:"method"`
	ObjectPath string            `json:"object_path"`
	ExpiresAt  time.Time         `json:"expires_at"`
	Headers    map[string]string `json:"headers,omitempty"`
}

// bucketSigner is satisfied by *storage.BucketHandle; it signs with the ambient credentials.
type bucketSigner interface {
	SignedURL(object string, opts *storage.SignedURLOptions) (string, error)
}

// ReceiptStore issues V4 signed URLs for bank-transfer receipt uploads and downloads.
type ReceiptStore struct {
	bucket string
	signer Signer
	handle bucketSigner
	ttl    time.Duration
	now    func() time.Time
}

// ReceiptOption customises a ReceiptStore.
type ReceiptOption func(*ReceiptStore)

// WithSigner signs with an explicit service account key instead of the ambient credentials.
func WithSigner(signer Signer) ReceiptOption {
	return func(s *ReceiptStore) { s.signer = signer }
}

// WithClient signs through the bucket handle of a Cloud Storage client (IAM signBlob).
func WithClient(client *storage.Client) ReceiptOption {
	return func(s *ReceiptStore) {
		if client != nil {
			s.handle = client.Bucket(s.bucket)
		}
	}
}

// WithUploadTTL overrides the upload URL lifetime.
func WithUploadTTL(ttl time.Duration) ReceiptOption {
	return func(s *ReceiptStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock injects a time source.
func WithClock(now func() time.Time) ReceiptOption {
	return func(s *ReceiptStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewReceiptStore constructs a ReceiptStore for bucket.
func NewReceiptStore(bucket string, opts ...ReceiptOption) (*ReceiptStore, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, ErrBucketRequired
	}
	store := &ReceiptStore{bucket: bucket, ttl: defaultUploadExpiry, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	if store.signer == nil && store.handle == nil {
		return nil, errors.New("storage: a signer or storage client is required")
	}
	return store, nil
}

// ReceiptPath builds the object path for an order receipt upload.
func ReceiptPath(orderID, fileName string, at time.Time) string {
	name := unsafeFileNameSegments.ReplaceAllString(path.Base(strings.TrimSpace(fileName)), "-")
	if name == "" || name == "." || name == "-" {
		name = "receipt"
	}
	return fmt.Sprintf("receipts/%s/%d-%s", orderID, at.UTC().Unix(), name)
}

// UploadURL signs a PUT for objectPath limited to receipt content types and a 10 MiB body.
func (s *ReceiptStore) UploadURL(ctx context.Context, objectPath, contentType string) (SignedURL, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	allowed := false
	for _, candidate := range receiptContentTypes {
		if candidate == contentType {
			allowed = true
			break
		}
	}
	if !allowed {
		return SignedURL{}, ErrContentTypeDenied
	}

	sizeRange := fmt.Sprintf("0,%d", maxReceiptSize)
	expires := s.now().Add(s.ttl)
	opts := &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      "PUT",
		ContentType: contentType,
		Expires:     expires,
		Headers:     []string{"x-goog-content-length-range:" + sizeRange},
	}
	signed, err := s.sign(ctx, objectPath, opts)
	if err != nil {
		return SignedURL{}, fmt.Errorf("storage: sign upload url: %w", err)
	}
	return SignedURL{
		URL:        signed,
		Method:     "PUT",
		ObjectPath: objectPath,
		ExpiresAt:  expires,
		Headers: map[string]string{
			"Content-Type":                contentType,
			"x-goog-content-length-range": sizeRange,
		},
	}, nil
}

// DownloadURL signs a short-lived GET for objectPath.
func (s *ReceiptStore) DownloadURL(ctx context.Context, objectPath string) (SignedURL, error) {
	expires := s.now().Add(defaultDownloadExpiry)
	signed, err := s.sign(ctx, objectPath, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: expires,
	})
	if err != nil {
		return SignedURL{}, fmt.Errorf("storage: sign download url: %w", err)
	}
	return SignedURL{URL: signed, Method: "GET", ObjectPath: objectPath, ExpiresAt: expires}, nil
}

func (s *ReceiptStore) sign(ctx context.Context, objectPath string, opts *storage.SignedURLOptions) (string, error) {
	if strings.TrimSpace(objectPath) == "" {
		return "", errors.New("storage: object path is required")
	}
	if s.signer != nil {
		opts.GoogleAccessID = s.signer.Email()
		opts.SignBytes = func(payload []byte) ([]byte, error) {
			return s.signer.SignBytes(ctx, payload)
		}
		return storage.SignedURL(s.bucket, objectPath, opts)
	}
	return s.handle.SignedURL(objectPath, opts)
}
