// Package upload issues signed, expiring tickets for large genomic file
// uploads and validates completion by checksum. The presigned URL scheme
// mirrors object-store conventions: an expires parameter plus an HMAC over
// the method, upload ID, filename, and expiry.
package upload

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned for unknown upload IDs.
	ErrNotFound = errors.New("upload: not found")
	// ErrUnsupportedType is returned for file types outside the allowed set.
	ErrUnsupportedType = errors.New("upload: unsupported file type")
	// ErrBadExtension is returned when the filename extension does not match
	// the declared type.
	ErrBadExtension = errors.New("upload: extension does not match file type")
	// ErrTooLarge is returned when the declared size exceeds the per-type cap.
	ErrTooLarge = errors.New("upload: file exceeds size limit")
)

// Status of an upload ticket.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
	StatusFailed    Status = "failed"
)

const defaultTTL = 24 * time.Hour

type fileSpec struct {
	maxBytes   int64
	extensions []string
}

// Per-type size caps and accepted extensions.
var fileSpecs = map[string]fileSpec{
	"vcf":   {maxBytes: 100 << 20, extensions: []string{".vcf", ".vcf.gz"}},
	"fastq": {maxBytes: 10 << 30, extensions: []string{".fastq", ".fq", ".fastq.gz", ".fq.gz"}},
	"bam":   {maxBytes: 5 << 30, extensions: []string{".bam"}},
	"cram":  {maxBytes: 2 << 30, extensions: []string{".cram"}},
}

// Upload is one issued ticket.
type Upload struct {
	UploadID     string    `json:"upload_id"`
	Filename     string    `json:"filename"`
	FileType     string    `json:"file_type"`
	SizeBytes    int64     `json:"size_bytes"`
	Checksum     string    `json:"checksum"`
	UserID       string    `json:"user_id"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	PresignedURL string    `json:"presigned_url"`
}

// Coordinator issues and completes upload tickets.
type Coordinator struct {
	mu      sync.Mutex
	uploads map[string]*Upload

	secret  []byte
	baseURL string
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithBaseURL sets the upload endpoint prefix embedded in presigned URLs.
func WithBaseURL(base string) Option {
	return func(c *Coordinator) { c.baseURL = strings.TrimRight(base, "/") }
}

// NewCoordinator creates a coordinator signing URLs with the given secret.
func NewCoordinator(secret string, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		uploads: make(map[string]*Upload),
		secret:  []byte(secret),
		baseURL: "https://uploads.genomelab.local",
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreatePresigned validates the request and issues a ticket. ttlHours <= 0
// falls back to 24 hours.
func (c *Coordinator) CreatePresigned(filename string, sizeBytes int64, fileType, checksum, userID string, ttlHours int) (Upload, error) {
	spec, ok := fileSpecs[strings.ToLower(fileType)]
	if !ok {
		return Upload{}, fmt.Errorf("%w: %q", ErrUnsupportedType, fileType)
	}

	lower := strings.ToLower(filename)
	matched := false
	for _, ext := range spec.extensions {
		if strings.HasSuffix(lower, ext) {
			matched = true
			break
		}
	}
	if !matched {
		return Upload{}, fmt.Errorf("%w: %q is not a %s file", ErrBadExtension, filename, fileType)
	}
	if sizeBytes <= 0 || sizeBytes > spec.maxBytes {
		return Upload{}, fmt.Errorf("%w: %d bytes (limit %d for %s)", ErrTooLarge, sizeBytes, spec.maxBytes, fileType)
	}

	ttl := defaultTTL
	if ttlHours > 0 {
		ttl = time.Duration(ttlHours) * time.Hour
	}
	now := c.now().UTC()
	expires := now.Add(ttl)

	seed := fmt.Sprintf("%s|%s|%d|%s", filename, userID, now.UnixNano(), uuid.NewString())
	sum := sha256.Sum256([]byte(seed))
	uploadID := hex.EncodeToString(sum[:])[:16]

	up := Upload{
		UploadID:     uploadID,
		Filename:     filename,
		FileType:     strings.ToLower(fileType),
		SizeBytes:    sizeBytes,
		Checksum:     checksum,
		UserID:       userID,
		Status:       StatusPending,
		CreatedAt:    now,
		ExpiresAt:    expires,
		PresignedURL: c.signURL(uploadID, filename, expires),
	}

	c.mu.Lock()
	c.uploads[uploadID] = &up
	c.mu.Unlock()

	c.logger.Info("upload ticket issued",
		"upload_id", uploadID,
		"user_id", userID,
		"file_type", up.FileType,
		"size_bytes", sizeBytes,
		"expires_at", expires,
	)
	return up, nil
}

// signURL builds the presigned PUT URL: expiry plus an HMAC binding the
// method, ticket, filename, and expiry together.
func (c *Coordinator) signURL(uploadID, filename string, expires time.Time) string {
	mac := hmac.New(sha256.New, c.secret)
	fmt.Fprintf(mac, "PUT\n%s\n%s\n%d", uploadID, filename, expires.Unix())
	sig := hex.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("%s/%s?expires=%d&signature=%s", c.baseURL, uploadID, expires.Unix(), sig)
}

// VerifyURLSignature checks a presigned URL's signature components.
func (c *Coordinator) VerifyURLSignature(uploadID, filename string, expiresUnix int64, signature string) bool {
	mac := hmac.New(sha256.New, c.secret)
	fmt.Fprintf(mac, "PUT\n%s\n%s\n%d", uploadID, filename, expiresUnix)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(signature))
}

// Complete finalizes a ticket: expired tickets move to EXPIRED, checksum
// mismatches to FAILED, matches to COMPLETED. The resulting status is
// returned alongside a success flag.
func (c *Coordinator) Complete(uploadID, actualChecksum string) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	up, ok := c.uploads[uploadID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, uploadID)
	}

	switch {
	case c.now().UTC().After(up.ExpiresAt):
		up.Status = StatusExpired
	case up.Checksum != actualChecksum:
		up.Status = StatusFailed
	default:
		up.Status = StatusCompleted
	}

	c.logger.Info("upload completed",
		"upload_id", uploadID,
		"status", up.Status,
	)
	return up.Status, nil
}

// Get returns a ticket by ID.
func (c *Coordinator) Get(uploadID string) (Upload, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	up, ok := c.uploads[uploadID]
	if !ok {
		return Upload{}, fmt.Errorf("%w: %s", ErrNotFound, uploadID)
	}
	return *up, nil
}
