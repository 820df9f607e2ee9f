// Package contracts manages uploaded contract documents: bytes in object
// storage, metadata and parsed text in Postgres, duplicates caught by
// content hash.
package contracts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/contract"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/storage/minio"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

// maxUploadBytes bounds a single document upload.
const maxUploadBytes = 50 << 20

var contentTypes = map[contract.FileType]string{
	contract.FileTypePDF:  "application/pdf",
	contract.FileTypeDOCX: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	contract.FileTypeDOC:  "application/msword",
}

// UploadInput carries one document upload.
type UploadInput struct {
	Filename string
	Reader   io.Reader
}

// Service is the contract application service.
type Service struct {
	contracts contract.Repository
	store     minio.ObjectStore
	logger    logging.Logger
	now       func() time.Time
}

// NewService builds the contract service.
func NewService(contracts contract.Repository, store minio.ObjectStore, log logging.Logger) *Service {
	return &Service{
		contracts: contracts,
		store:     store,
		logger:    log,
		now:       time.Now,
	}
}

// Upload stores a document and its metadata.  A document whose bytes hash to
// an already-uploaded contract is rejected with a conflict carrying the
// existing contract's id.
func (s *Service) Upload(ctx context.Context, input UploadInput) (*contract.Contract, error) {
	if input.Filename == "" {
		return nil, errors.NewValidationError("filename is required")
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(input.Filename)), ".")
	fileType, ok := contract.ParseFileType(ext)
	if !ok {
		return nil, errors.New(errors.ErrCodeContractTypeUnsupported,
			"unsupported file type: "+ext)
	}

	data, err := io.ReadAll(io.LimitReader(input.Reader, maxUploadBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeContractUploadFailed, "failed to read upload")
	}
	if len(data) == 0 {
		return nil, errors.NewValidationError("uploaded file is empty")
	}
	if len(data) > maxUploadBytes {
		return nil, errors.NewValidationError("uploaded file exceeds the 50 MiB limit")
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	existing, err := s.contracts.FindByHash(ctx, hash)
	if err != nil && !errors.IsNotFound(err) {
		return nil, err
	}
	if existing != nil {
		return nil, errors.New(errors.ErrCodeContractAlreadyExists,
			"identical document already uploaded as contract "+existing.ID)
	}

	id := uuid.NewString()
	objectKey := fmt.Sprintf("contracts/%s/%s", id, filepath.Base(input.Filename))
	if err := s.store.Put(ctx, objectKey, bytes.NewReader(data), int64(len(data)), contentTypes[fileType]); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	c := &contract.Contract{
		ID:               id,
		Filename:         filepath.Base(input.Filename),
		OriginalFilename: input.Filename,
		ObjectKey:        objectKey,
		FileType:         fileType,
		FileSizeBytes:    int64(len(data)),
		FileHash:         hash,
		UploadedAt:       now,
		UpdatedAt:        now,
	}
	if err := s.contracts.Save(ctx, c); err != nil {
		// The metadata row failed; do not leave an orphaned object behind.
		if rmErr := s.store.Remove(ctx, objectKey); rmErr != nil {
			s.logger.Error("Failed to clean up orphaned object",
				logging.String("object_key", objectKey), logging.Err(rmErr))
		}
		return nil, err
	}

	version := &contract.Version{
		ID:            uuid.NewString(),
		ContractID:    c.ID,
		VersionNumber: 1,
		ObjectKey:     objectKey,
		FileHash:      hash,
		CreatedAt:     now,
	}
	if err := s.contracts.SaveVersion(ctx, version); err != nil {
		return nil, err
	}

	s.logger.Info("Contract uploaded",
		logging.String("contract_id", c.ID),
		logging.String("file_type", string(fileType)),
		logging.Int64("size_bytes", c.FileSizeBytes),
	)
	return c, nil
}

// Get returns one contract's metadata.
func (s *Service) Get(ctx context.Context, id string) (*contract.Contract, error) {
	return s.contracts.FindByID(ctx, id)
}

// List returns contract metadata rows.
func (s *Service) List(ctx context.Context, opts ...contract.QueryOption) ([]*contract.Contract, int64, error) {
	return s.contracts.List(ctx, opts...)
}

// Download streams the stored document bytes.  The caller closes the reader.
func (s *Service) Download(ctx context.Context, id string) (io.ReadCloser, *contract.Contract, error) {
	c, err := s.contracts.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.store.Get(ctx, c.ObjectKey)
	if err != nil {
		return nil, nil, err
	}
	return rc, c, nil
}

// DownloadURL returns a time-limited presigned URL for the document.
func (s *Service) DownloadURL(ctx context.Context, id string, expiry time.Duration) (string, error) {
	c, err := s.contracts.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	return s.store.PresignedGetURL(ctx, c.ObjectKey, expiry)
}

// SetText stores the parsed document text; extraction jobs require it.
func (s *Service) SetText(ctx context.Context, id, text string, pageCount int) error {
	if strings.TrimSpace(text) == "" {
		return errors.NewValidationError("document text is empty")
	}
	if _, err := s.contracts.FindByID(ctx, id); err != nil {
		return err
	}
	return s.contracts.UpdateText(ctx, id, text, pageCount)
}

// Delete soft-deletes the contract.  The stored object is retained so the
// row can be restored.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.contracts.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.contracts.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Contract deleted", logging.String("contract_id", id))
	return nil
}

// Versions lists the contract's revision history.
func (s *Service) Versions(ctx context.Context, id string) ([]*contract.Version, error) {
	if _, err := s.contracts.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.contracts.FindVersions(ctx, id)
}
