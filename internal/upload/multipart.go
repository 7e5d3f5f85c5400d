package upload

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/creativeops/thumbselect/internal/logging"
)

// Upload part sizing. Source videos routinely run into the gigabytes, so
// clients send them in parts instead of one request.
const (
	DefaultPartSize   = 5 * 1024 * 1024
	MaxPartSize       = 100 * 1024 * 1024
	DefaultExpiration = 24 * time.Hour
)

// Upload statuses
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusAborted   = "aborted"
)

var (
	ErrUploadNotFound   = errors.New("upload not found")
	ErrUploadNotActive  = errors.New("upload is not active")
	ErrPartOutOfRange   = errors.New("part number out of range")
	ErrPartTooLarge     = errors.New("part exceeds the negotiated part size")
	ErrUploadIncomplete = errors.New("upload is missing parts")
)

// Upload is one chunked upload in progress.
type Upload struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	ParentID   string    `json:"parent_id"`
	Name       string    `json:"name"`
	TotalSize  int64     `json:"total_size"`
	PartSize   int64     `json:"part_size"`
	TotalParts int       `json:"total_parts"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`

	parts map[int]string // part number -> etag
}

// Received reports how many parts have arrived.
func (u *Upload) Received() int {
	return len(u.parts)
}

// Service manages chunked uploads of large video sources. Parts land as
// files under tempDir and are concatenated on completion; the assembled
// file is then probed and stored exactly like a direct upload.
type Service struct {
	mu       sync.Mutex
	uploads  map[string]*Upload
	tempDir  string
	partSize int64
	log      *logging.Logger
}

// NewService creates an upload service writing parts under tempDir.
func NewService(tempDir string, partSize int64, log *logging.Logger) *Service {
	if partSize <= 0 || partSize > MaxPartSize {
		partSize = DefaultPartSize
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Service{
		uploads:  make(map[string]*Upload),
		tempDir:  tempDir,
		partSize: partSize,
		log:      log,
	}
}

// Init registers a new chunked upload and negotiates the part layout.
func (s *Service) Init(filename, parentID, name string, totalSize int64) (*Upload, error) {
	if filename == "" || parentID == "" {
		return nil, errors.New("filename and parent_id are required")
	}
	if totalSize <= 0 {
		return nil, errors.New("total_size must be positive")
	}

	totalParts := int((totalSize + s.partSize - 1) / s.partSize)
	now := time.Now()

	u := &Upload{
		ID:         uuid.New().String(),
		Filename:   filename,
		ParentID:   parentID,
		Name:       name,
		TotalSize:  totalSize,
		PartSize:   s.partSize,
		TotalParts: totalParts,
		Status:     StatusActive,
		CreatedAt:  now,
		ExpiresAt:  now.Add(DefaultExpiration),
		parts:      make(map[int]string),
	}

	if err := os.MkdirAll(s.uploadDir(u.ID), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}

	s.mu.Lock()
	s.uploads[u.ID] = u
	s.mu.Unlock()

	return u, nil
}

// Get returns an upload by id.
func (s *Service) Get(id string) (*Upload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.uploads[id]
	if !ok {
		return nil, ErrUploadNotFound
	}
	return u, nil
}

// PutPart stores one part and returns its etag. Parts are numbered from 1
// and may arrive in any order; re-sending a part overwrites it.
func (s *Service) PutPart(id string, partNumber int, data []byte) (string, error) {
	s.mu.Lock()
	u, ok := s.uploads[id]
	if !ok {
		s.mu.Unlock()
		return "", ErrUploadNotFound
	}
	if u.Status != StatusActive {
		s.mu.Unlock()
		return "", ErrUploadNotActive
	}
	if partNumber < 1 || partNumber > u.TotalParts {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %d of %d", ErrPartOutOfRange, partNumber, u.TotalParts)
	}
	if int64(len(data)) > u.PartSize {
		s.mu.Unlock()
		return "", ErrPartTooLarge
	}
	s.mu.Unlock()

	if err := os.WriteFile(s.partPath(id, partNumber), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write part: %w", err)
	}

	sum := md5.Sum(data)
	etag := hex.EncodeToString(sum[:])

	s.mu.Lock()
	u.parts[partNumber] = etag
	s.mu.Unlock()

	return etag, nil
}

// Complete concatenates the parts in order and returns the assembled file's
// path and size. The caller owns turning it into an asset and must Remove
// the upload afterwards.
func (s *Service) Complete(id string) (string, int64, error) {
	s.mu.Lock()
	u, ok := s.uploads[id]
	if !ok {
		s.mu.Unlock()
		return "", 0, ErrUploadNotFound
	}
	if u.Status != StatusActive {
		s.mu.Unlock()
		return "", 0, ErrUploadNotActive
	}
	if len(u.parts) != u.TotalParts {
		s.mu.Unlock()
		return "", 0, fmt.Errorf("%w: %d of %d received", ErrUploadIncomplete, len(u.parts), u.TotalParts)
	}
	s.mu.Unlock()

	assembled := filepath.Join(s.uploadDir(id), "assembled_"+filepath.Base(u.Filename))
	out, err := os.Create(assembled)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create assembled file: %w", err)
	}

	var size int64
	for n := 1; n <= u.TotalParts; n++ {
		part, err := os.Open(s.partPath(id, n))
		if err != nil {
			out.Close()
			return "", 0, fmt.Errorf("failed to open part %d: %w", n, err)
		}
		written, err := io.Copy(out, part)
		part.Close()
		if err != nil {
			out.Close()
			return "", 0, fmt.Errorf("failed to assemble part %d: %w", n, err)
		}
		size += written
	}

	if err := out.Close(); err != nil {
		return "", 0, err
	}

	s.mu.Lock()
	u.Status = StatusCompleted
	s.mu.Unlock()

	return assembled, size, nil
}

// Abort cancels an upload and removes its parts.
func (s *Service) Abort(id string) error {
	s.mu.Lock()
	u, ok := s.uploads[id]
	if !ok {
		s.mu.Unlock()
		return ErrUploadNotFound
	}
	u.Status = StatusAborted
	delete(s.uploads, id)
	s.mu.Unlock()

	return os.RemoveAll(s.uploadDir(id))
}

// Remove deregisters a completed upload and deletes its files.
func (s *Service) Remove(id string) {
	s.mu.Lock()
	delete(s.uploads, id)
	s.mu.Unlock()

	if err := os.RemoveAll(s.uploadDir(id)); err != nil {
		s.log.Warnf("failed to remove upload dir for %s: %v", id, err)
	}
}

// PruneExpired drops uploads past their expiration and returns how many
// were removed.
func (s *Service) PruneExpired() int {
	now := time.Now()

	s.mu.Lock()
	var expired []string
	for id, u := range s.uploads {
		if now.After(u.ExpiresAt) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(s.uploads, id)
	}
	s.mu.Unlock()

	for _, id := range expired {
		if err := os.RemoveAll(s.uploadDir(id)); err != nil {
			s.log.Warnf("failed to remove expired upload %s: %v", id, err)
		}
	}
	return len(expired)
}

func (s *Service) uploadDir(id string) string {
	return filepath.Join(s.tempDir, "uploads", id)
}

func (s *Service) partPath(id string, partNumber int) string {
	return filepath.Join(s.uploadDir(id), fmt.Sprintf("part_%05d", partNumber))
}
