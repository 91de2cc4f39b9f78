// Package upload reassembles files sent in numbered chunks and hands the
// result to object storage.
package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"gift_registry/internal/domain"
	"gift_registry/internal/storage"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DefaultChunkSize is advertised to clients at initiate time
const DefaultChunkSize int64 = 1 << 20

var (
	ErrNotFound        = errors.New("upload not found")
	ErrCompleted       = errors.New("upload already completed")
	ErrInvalidIndex    = errors.New("invalid chunk index")
	ErrChunkTooLarge   = errors.New("chunk exceeds chunk size")
	ErrMissingPart     = errors.New("missing chunk")
	ErrSizeMismatch    = errors.New("assembled size does not match declared size")
	ErrInvalidFilename = errors.New("invalid filename")
	ErrInvalidFileSize = errors.New("invalid file size")
	ErrChecksum        = errors.New("checksum mismatch")
)

// InitiateInput describes the file a client is about to send
type InitiateInput struct {
	Filename   string
	Size       int64
	Mime       string
	RegistryID *string
}

// Assembler stages chunks on local disk until Complete
type Assembler struct {
	db        *gorm.DB
	store     *storage.Storage
	tmpDir    string
	ChunkSize int64
}

// NewAssembler returns an Assembler staging parts below tmpDir
func NewAssembler(db *gorm.DB, store *storage.Storage, tmpDir string) *Assembler {
	return &Assembler{db: db, store: store, tmpDir: tmpDir, ChunkSize: DefaultChunkSize}
}

// Initiate records a new upload session owned by userID
func (a *Assembler) Initiate(ctx context.Context, userID string, in InitiateInput) (*domain.Upload, error) {
	name := cleanFilename(in.Filename)
	if name == "" {
		return nil, ErrInvalidFilename
	}
	if in.Size < 0 {
		return nil, ErrInvalidFileSize
	}
	up := &domain.Upload{
		ID:         uuid.NewString(),
		RegistryID: in.RegistryID,
		UserID:     userID,
		Filename:   name,
		Size:       in.Size,
		Mime:       in.Mime,
	}
	if err := os.MkdirAll(a.partsDir(up.ID), 0o700); err != nil {
		return nil, err
	}
	if err := a.db.WithContext(ctx).Create(up).Error; err != nil {
		os.RemoveAll(a.partsDir(up.ID))
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"upload_id": up.ID, "user_id": userID, "size": in.Size}).Info("upload initiated")
	return up, nil
}

// SaveChunk stores part index of the upload, replacing an earlier copy
func (a *Assembler) SaveChunk(ctx context.Context, userID, uploadID string, index int, r io.Reader) error {
	if index < 0 {
		return ErrInvalidIndex
	}
	up, err := a.load(ctx, userID, uploadID)
	if err != nil {
		return err
	}
	if up.Completed {
		return ErrCompleted
	}
	if int64(index) >= a.partCount(up.Size) {
		return fmt.Errorf("%w: %d is past the declared size", ErrInvalidIndex, index)
	}
	dir := a.partsDir(up.ID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".chunk-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	// read one byte past the limit to detect oversized chunks
	n, err := io.Copy(tmp, io.LimitReader(r, a.ChunkSize+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if n > a.ChunkSize {
		return ErrChunkTooLarge
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, strconv.Itoa(index)+".part"))
}

// Received returns the upload and the chunk indexes staged so far, letting a
// client resume an interrupted transfer.
func (a *Assembler) Received(ctx context.Context, userID, uploadID string) (*domain.Upload, []int, error) {
	up, err := a.load(ctx, userID, uploadID)
	if err != nil {
		return nil, nil, err
	}
	sizes, err := a.staged(up.ID)
	if err != nil {
		return nil, nil, err
	}
	indexes := make([]int, 0, len(sizes))
	for i := range sizes {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	return up, indexes, nil
}

// Complete concatenates the parts in index order, stores the result and
// removes the staged parts. A non-empty checksum is the expected hex SHA-256
// of the whole file.
func (a *Assembler) Complete(ctx context.Context, userID, uploadID, checksum string) (*domain.Upload, error) {
	up, err := a.load(ctx, userID, uploadID)
	if err != nil {
		return nil, err
	}
	if up.Completed {
		return up, nil
	}
	parts, total, err := a.parts(up.ID, up.Size)
	if err != nil {
		return nil, err
	}
	if total != up.Size {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrSizeMismatch, total, up.Size)
	}

	if checksum != "" {
		if err := verifyChecksum(parts, checksum); err != nil {
			return nil, err
		}
	}

	readers := make([]io.Reader, 0, len(parts))
	for _, p := range parts {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		readers = append(readers, f)
	}
	key := objectKey(up)
	if err := a.store.Put(ctx, key, io.MultiReader(readers...), total, up.Mime); err != nil {
		return nil, err
	}

	up.Completed = true
	up.URL = "/api/files/" + key
	if err := a.db.WithContext(ctx).Model(up).Updates(map[string]any{"completed": true, "url": up.URL}).Error; err != nil {
		return nil, err
	}
	if err := os.RemoveAll(a.partsDir(up.ID)); err != nil {
		logrus.WithError(err).WithField("upload_id", up.ID).Warn("failed to remove upload parts")
	}
	logrus.WithFields(logrus.Fields{"upload_id": up.ID, "key": key, "parts": len(parts)}).Info("upload completed")
	return up, nil
}

func (a *Assembler) load(ctx context.Context, userID, uploadID string) (*domain.Upload, error) {
	var up domain.Upload
	err := a.db.WithContext(ctx).Where("id = ? AND user_id = ?", uploadID, userID).First(&up).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &up, nil
}

// staged maps each staged chunk index to its size
func (a *Assembler) staged(uploadID string) (map[int]int64, error) {
	entries, err := os.ReadDir(a.partsDir(uploadID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	sizes := map[int]int64{}
	for _, e := range entries {
		idx, ok := strings.CutSuffix(e.Name(), ".part")
		if !ok || e.IsDir() {
			continue
		}
		i, err := strconv.Atoi(idx)
		if err != nil || i < 0 {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		sizes[i] = info.Size()
	}
	return sizes, nil
}

// partCount is the number of chunks a file of size bytes is split into; an
// empty file may still send one empty chunk.
func (a *Assembler) partCount(size int64) int64 {
	if size <= 0 || a.ChunkSize <= 0 {
		return 1
	}
	return (size + a.ChunkSize - 1) / a.ChunkSize
}

// parts returns staged part paths ordered by index, failing on gaps.
// An empty declared file needs no parts.
func (a *Assembler) parts(uploadID string, declared int64) ([]string, int64, error) {
	sizes, err := a.staged(uploadID)
	if err != nil {
		return nil, 0, err
	}
	if len(sizes) == 0 {
		if declared == 0 {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("%w: no chunks received", ErrMissingPart)
	}
	dir := a.partsDir(uploadID)
	paths := make([]string, len(sizes))
	var total int64
	for i := range paths {
		size, ok := sizes[i]
		if !ok {
			return nil, 0, fmt.Errorf("%w: %d", ErrMissingPart, i)
		}
		paths[i] = filepath.Join(dir, strconv.Itoa(i)+".part")
		total += size
	}
	return paths, total, nil
}

func verifyChecksum(parts []string, want string) error {
	h := sha256.New()
	for _, p := range parts {
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return err
		}
	}
	if got := hex.EncodeToString(h.Sum(nil)); !strings.EqualFold(got, strings.TrimSpace(want)) {
		return fmt.Errorf("%w: got %s", ErrChecksum, got)
	}
	return nil
}

func (a *Assembler) partsDir(uploadID string) string {
	return filepath.Join(a.tmpDir, "registry-uploads", uploadID)
}

func objectKey(up *domain.Upload) string {
	if up.RegistryID != nil && *up.RegistryID != "" {
		return path.Join("registry", *up.RegistryID, up.ID+"-"+up.Filename)
	}
	return path.Join("user", up.UserID, up.ID+"-"+up.Filename)
}

func cleanFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSpace(path.Base(name))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}
