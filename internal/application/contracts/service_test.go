package contracts

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/contract"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

type memoryContractRepo struct {
	mu       sync.Mutex
	rows     map[string]*contract.Contract
	versions map[string][]*contract.Version
}

func newMemoryContractRepo() *memoryContractRepo {
	return &memoryContractRepo{
		rows:     map[string]*contract.Contract{},
		versions: map[string][]*contract.Version{},
	}
}

func (r *memoryContractRepo) Save(_ context.Context, c *contract.Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.rows[c.ID] = &cp
	return nil
}

func (r *memoryContractRepo) FindByID(_ context.Context, id string) (*contract.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok || c.IsDeleted {
		return nil, errors.New(errors.ErrCodeContractNotFound, "contract not found: "+id)
	}
	cp := *c
	return &cp, nil
}

func (r *memoryContractRepo) FindByHash(_ context.Context, hash string) (*contract.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.FileHash == hash && !c.IsDeleted {
			cp := *c
			return &cp, nil
		}
	}
	return nil, errors.New(errors.ErrCodeContractNotFound, "contract not found")
}

func (r *memoryContractRepo) List(context.Context, ...contract.QueryOption) ([]*contract.Contract, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*contract.Contract
	for _, c := range r.rows {
		if !c.IsDeleted {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memoryContractRepo) UpdateText(_ context.Context, id, text string, pageCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return errors.New(errors.ErrCodeContractNotFound, "contract not found: "+id)
	}
	c.ExtractedText = text
	c.PageCount = pageCount
	return nil
}

func (r *memoryContractRepo) SoftDelete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return errors.New(errors.ErrCodeContractNotFound, "contract not found: "+id)
	}
	c.IsDeleted = true
	return nil
}

func (r *memoryContractRepo) SaveVersion(_ context.Context, v *contract.Version) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *v
	r.versions[v.ContractID] = append(r.versions[v.ContractID], &cp)
	return nil
}

func (r *memoryContractRepo) FindVersions(_ context.Context, contractID string) ([]*contract.Version, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.versions[contractID], nil
}

type memoryObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemoryObjectStore() *memoryObjectStore {
	return &memoryObjectStore{objects: map[string][]byte{}}
}

func (s *memoryObjectStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if s.putErr != nil {
		return s.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memoryObjectStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "object not found: "+key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memoryObjectStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memoryObjectStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *memoryObjectStore) PresignedGetURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://minio.local/" + key, nil
}

func newTestService() (*Service, *memoryContractRepo, *memoryObjectStore) {
	repo := newMemoryContractRepo()
	store := newMemoryObjectStore()
	return NewService(repo, store, logging.NewNopLogger()), repo, store
}

func TestUploadStoresDocumentAndVersion(t *testing.T) {
	svc, repo, store := newTestService()

	c, err := svc.Upload(context.Background(), UploadInput{
		Filename: "guidelines.pdf",
		Reader:   bytes.NewReader([]byte("%PDF-1.7 fake document")),
	})
	require.NoError(t, err)
	assert.Equal(t, contract.FileTypePDF, c.FileType)
	assert.Len(t, c.FileHash, 64)
	assert.Equal(t, int64(22), c.FileSizeBytes)

	data, ok := store.objects[c.ObjectKey]
	require.True(t, ok)
	assert.Equal(t, []byte("%PDF-1.7 fake document"), data)

	versions, err := repo.FindVersions(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].VersionNumber)
	assert.Equal(t, c.FileHash, versions[0].FileHash)
}

func TestUploadRejectsDuplicateHash(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	payload := []byte("%PDF-1.7 same bytes")
	first, err := svc.Upload(ctx, UploadInput{Filename: "a.pdf", Reader: bytes.NewReader(payload)})
	require.NoError(t, err)

	_, err = svc.Upload(ctx, UploadInput{Filename: "b.pdf", Reader: bytes.NewReader(payload)})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeContractAlreadyExists))
	assert.Contains(t, err.Error(), first.ID)
}

func TestUploadRejectsBadInput(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Upload(ctx, UploadInput{Filename: "", Reader: bytes.NewReader([]byte("x"))})
	assert.True(t, errors.IsValidation(err))

	_, err = svc.Upload(ctx, UploadInput{Filename: "notes.txt", Reader: bytes.NewReader([]byte("x"))})
	assert.True(t, errors.IsCode(err, errors.ErrCodeContractTypeUnsupported))

	_, err = svc.Upload(ctx, UploadInput{Filename: "empty.pdf", Reader: bytes.NewReader(nil)})
	assert.True(t, errors.IsValidation(err))
}

func TestUploadCleansUpObjectWhenSaveFails(t *testing.T) {
	repo := newMemoryContractRepo()
	store := newMemoryObjectStore()
	svc := NewService(failingSaveRepo{repo}, store, logging.NewNopLogger())

	_, err := svc.Upload(context.Background(), UploadInput{
		Filename: "doc.pdf",
		Reader:   bytes.NewReader([]byte("%PDF data")),
	})
	require.Error(t, err)
	assert.Empty(t, store.objects, "orphaned object removed")
}

type failingSaveRepo struct{ *memoryContractRepo }

func (r failingSaveRepo) Save(context.Context, *contract.Contract) error {
	return errors.New(errors.ErrCodeDatabaseError, "insert failed")
}

func TestDownloadAndURL(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	c, err := svc.Upload(ctx, UploadInput{Filename: "doc.docx", Reader: bytes.NewReader([]byte("docx bytes"))})
	require.NoError(t, err)

	rc, meta, err := svc.Download(ctx, c.ID)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("docx bytes"), data)
	assert.Equal(t, c.ID, meta.ID)

	url, err := svc.DownloadURL(ctx, c.ID, time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, c.ObjectKey)

	_, _, err = svc.Download(ctx, "ghost")
	assert.True(t, errors.IsCode(err, errors.ErrCodeContractNotFound))
}

func TestSetTextAndSoftDelete(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	c, err := svc.Upload(ctx, UploadInput{Filename: "doc.pdf", Reader: bytes.NewReader([]byte("%PDF"))})
	require.NoError(t, err)

	assert.True(t, errors.IsValidation(svc.SetText(ctx, c.ID, "   ", 0)))
	require.NoError(t, svc.SetText(ctx, c.ID, "full document text", 12))

	stored := repo.rows[c.ID]
	assert.Equal(t, "full document text", stored.ExtractedText)
	assert.Equal(t, 12, stored.PageCount)

	require.NoError(t, svc.Delete(ctx, c.ID))
	_, err = svc.Get(ctx, c.ID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeContractNotFound))

	// Soft delete frees the hash for a re-upload.
	_, err = svc.Upload(ctx, UploadInput{Filename: "doc.pdf", Reader: bytes.NewReader([]byte("%PDF"))})
	require.NoError(t, err)
}
