// Package file manages stored files: metadata, quota accounting, sharing,
// and the object-storage backend holding the bytes.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	kd "github.com/kumori-disk/kumori-disk"
	"github.com/kumori-disk/kumori-disk/tx"
)

// Consumer is the kind of entity owning or sharing a file. Users are the
// only consumer today.
type Consumer string

const ConsumerUser Consumer = "user"

// File is the stored metadata record. The bytes live in object storage
// under Key.
type File struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	SizeInBytes int64     `json:"size_in_bytes"`
	OwnerID     string    `json:"owner_id"`
	OwnerType   Consumer  `json:"owner_type"`
	CreatedAt   time.Time `json:"created_at"`

	// TenantIDs are the users the file is shared with, owner included.
	TenantIDs []string `json:"tenant_ids,omitempty"`
}

// CreateFile carries a new metadata record.
type CreateFile struct {
	Key         string
	SizeInBytes int64
	OwnerID     string
	OwnerType   Consumer
}

// Store manages file metadata. Implementations must honor the ambient
// transaction handle in ctx.
type Store interface {
	FindByID(ctx context.Context, id string) (*File, error)
	FindManyByIDs(ctx context.Context, ids []string) ([]*File, error)
	Create(ctx context.Context, data CreateFile) (*File, error)
	UpdateKey(ctx context.Context, id, key string) (bool, error)

	// AttachTenant and DetachTenant manage the sharing relation between
	// files and users.
	AttachTenant(ctx context.Context, fileIDs []string, tenantID string) error
	DetachTenant(ctx context.Context, fileIDs []string, tenantID string) error

	Delete(ctx context.Context, id string) (bool, error)
}

// Storage is the object-storage backend.
type Storage interface {
	// Upload writes body under a key derived from the owner, path and name,
	// returning that key.
	Upload(ctx context.Context, up Upload) (string, error)

	// Copy duplicates sourceKey under copyPath, returning the new key.
	Copy(ctx context.Context, sourceKey, copyPath string) (string, error)

	// Rename moves sourceKey to carry the new name, returning the new key.
	Rename(ctx context.Context, sourceKey, name string) (string, error)

	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// DownloadLink returns a presigned URL valid for ttl.
	DownloadLink(ctx context.Context, key string, ttl time.Duration) (string, error)

	Delete(ctx context.Context, key string) error
}

// Upload carries one object for storage.
type Upload struct {
	OwnerID     string
	Path        string
	Name        string
	SizeInBytes int64
	Body        io.Reader
}

var (
	ErrFileNotFound          = errors.New("file not found")
	ErrInsufficientDiskSpace = errors.New("not enough disk space")
)

// GenerateKey builds the storage key for a file. Keys are namespaced by
// owner so one user can never collide with another.
func GenerateKey(ownerID, path, name string) string {
	return fmt.Sprintf("%s/%s/%s", ownerID, path, name)
}

// ModifyKeyPath rebuilds key with a different path, keeping owner and name.
func ModifyKeyPath(key, newPath string) string {
	parts := strings.Split(key, "/")
	ownerID := parts[0]
	name := parts[len(parts)-1]
	return GenerateKey(ownerID, newPath, name)
}

// ModifyKeyName rebuilds key with a different file name, keeping owner and
// path.
func ModifyKeyName(key, newName string) string {
	parts := strings.Split(key, "/")
	ownerID := parts[0]
	path := strings.Join(parts[1:len(parts)-1], "/")
	return GenerateKey(ownerID, path, newName)
}

// ServiceConfig wires the file service.
type ServiceConfig struct {
	Files   Store
	Users   kd.UserStore
	Storage Storage
	Tx      tx.Coordinator
	Logger  *slog.Logger
}

// Service coordinates metadata, quota and object storage.
type Service struct {
	files   Store
	users   kd.UserStore
	storage Storage
	tx      tx.Coordinator
	logger  *slog.Logger
}

// NewService creates the file service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	coordinator := cfg.Tx
	if coordinator == nil {
		coordinator = tx.Nop{}
	}
	return &Service{
		files:   cfg.Files,
		users:   cfg.Users,
		storage: cfg.Storage,
		tx:      coordinator,
		logger:  logger,
	}
}

// Upload stores an object and records it against the owner's quota. Quota
// subtraction and the metadata insert share one unit of work; the object
// write happens inside it so any failure rolls the account back. A commit
// failure can leave an orphan object behind, which is cleaned up best
// effort.
func (s *Service) Upload(ctx context.Context, up Upload) (*File, error) {
	var created *File
	var key string

	err := tx.InTransaction(ctx, s.tx, func(ctx context.Context) error {
		ok, err := s.users.SubtractDiskSpace(ctx, up.OwnerID, up.SizeInBytes)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInsufficientDiskSpace
		}

		key, err = s.storage.Upload(ctx, up)
		if err != nil {
			return err
		}

		created, err = s.files.Create(ctx, CreateFile{
			Key:         key,
			SizeInBytes: up.SizeInBytes,
			OwnerID:     up.OwnerID,
			OwnerType:   ConsumerUser,
		})
		return err
	})
	if err != nil {
		if key != "" {
			if cleanupErr := s.storage.Delete(ctx, key); cleanupErr != nil {
				s.logger.WarnContext(ctx, "orphan object not cleaned up", "key", key, "error", cleanupErr)
			}
		}
		return nil, err
	}
	return created, nil
}

// Download streams the object bytes for a file id.
func (s *Service) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	file, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.storage.Download(ctx, file.Key)
}

// DownloadLink returns a presigned URL for a file id, valid for ttl.
func (s *Service) DownloadLink(ctx context.Context, id string, ttl time.Duration) (string, error) {
	file, err := s.findByID(ctx, id)
	if err != nil {
		return "", err
	}
	return s.storage.DownloadLink(ctx, file.Key, ttl)
}

// Rename changes a file's name in storage and metadata together.
func (s *Service) Rename(ctx context.Context, id, name string) (*File, error) {
	var renamed *File

	err := tx.InTransaction(ctx, s.tx, func(ctx context.Context) error {
		file, err := s.findByID(ctx, id)
		if err != nil {
			return err
		}

		newKey, err := s.storage.Rename(ctx, file.Key, name)
		if err != nil {
			return err
		}

		updated, err := s.files.UpdateKey(ctx, id, newKey)
		if err != nil {
			return err
		}
		if !updated {
			return ErrFileNotFound
		}

		file.Key = newKey
		renamed = file
		return nil
	})
	if err != nil {
		return nil, err
	}
	return renamed, nil
}

// ShareAccess grants a user access to the given files.
func (s *Service) ShareAccess(ctx context.Context, fileIDs []string, tenantID string) error {
	exists, err := s.users.ExistsByID(ctx, tenantID)
	if err != nil {
		return err
	}
	if !exists {
		return kd.ErrUserNotFound
	}
	return s.files.AttachTenant(ctx, fileIDs, tenantID)
}

// RevokeAccess removes a user's access to the given files.
func (s *Service) RevokeAccess(ctx context.Context, fileIDs []string, tenantID string) error {
	return s.files.DetachTenant(ctx, fileIDs, tenantID)
}

// Delete removes the object and its metadata.
func (s *Service) Delete(ctx context.Context, id string) error {
	file, err := s.findByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.storage.Delete(ctx, file.Key); err != nil {
		return err
	}

	deleted, err := s.files.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrFileNotFound
	}
	return nil
}

func (s *Service) findByID(ctx context.Context, id string) (*File, error) {
	file, err := s.files.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, ErrFileNotFound
	}
	return file, nil
}
