package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"finledger/internal/core"

	"github.com/google/uuid"
)

// DefaultMaxAttachmentBytes caps a single uploaded bill photo.
const DefaultMaxAttachmentBytes int64 = 10 << 20

var (
	ErrAttachmentTooLarge = fmt.Errorf("%w: attachment too large", core.ErrInvalidInput)
	ErrAttachmentRef      = fmt.Errorf("%w: invalid attachment reference", core.ErrInvalidInput)
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// AttachmentStore keeps expense attachments as flat files in one directory.
// References have the form "<uuid>_<sanitized name>".
type AttachmentStore struct {
	dir      string
	maxBytes int64
}

func NewAttachmentStore(dir string, maxBytes int64) (*AttachmentStore, error) {
	if dir == "" {
		return nil, errors.New("attachment directory is required")
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxAttachmentBytes
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create attachment directory: %w", err)
	}
	return &AttachmentStore{dir: dir, maxBytes: maxBytes}, nil
}

func (s *AttachmentStore) MaxBytes() int64 { return s.maxBytes }

// SanitizeName reduces an uploaded file name to a safe base name.
func SanitizeName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = unsafeNameChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "attachment"
	}
	if len(base) > 100 {
		base = base[len(base)-100:]
	}
	return base
}

// Save copies r into a new file and returns its reference. Content beyond
// the size limit removes the partial file and fails.
func (s *AttachmentStore) Save(originalName string, r io.Reader) (string, error) {
	ref := uuid.NewString() + "_" + SanitizeName(originalName)
	path := filepath.Join(s.dir, ref)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("create attachment: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > s.maxBytes {
		err = ErrAttachmentTooLarge
	}
	if err != nil {
		os.Remove(path)
		if errors.Is(err, ErrAttachmentTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("write attachment: %w", err)
	}
	return ref, nil
}

// Open returns the attachment content. The caller closes it.
func (s *AttachmentStore) Open(ref string) (*os.File, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, core.NotFoundError("attachment", ref)
	}
	if err != nil {
		return nil, fmt.Errorf("open attachment: %w", err)
	}
	return f, nil
}

// Delete removes the attachment. A missing file is not an error.
func (s *AttachmentStore) Delete(ref string) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete attachment: %w", err)
	}
	return nil
}

// OriginalName strips the uuid prefix from a reference.
func OriginalName(ref string) string {
	if _, name, ok := strings.Cut(ref, "_"); ok {
		return name
	}
	return ref
}

func (s *AttachmentStore) resolve(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) || strings.ContainsAny(ref, `/\`) || strings.HasPrefix(ref, ".") {
		return "", ErrAttachmentRef
	}
	id, _, ok := strings.Cut(ref, "_")
	if !ok {
		return "", ErrAttachmentRef
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", ErrAttachmentRef
	}
	return filepath.Join(s.dir, ref), nil
}
