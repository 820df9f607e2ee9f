package prompt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

type memoryOverrideRepo struct {
	byKey map[string]*Override
}

func newMemoryOverrideRepo() *memoryOverrideRepo {
	return &memoryOverrideRepo{byKey: map[string]*Override{}}
}

func (r *memoryOverrideRepo) FindByKey(_ context.Context, key string) (*Override, error) {
	o, ok := r.byKey[key]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodePromptNotFound, "no override")
	}
	cp := *o
	return &cp, nil
}

func (r *memoryOverrideRepo) FindAll(_ context.Context) ([]*Override, error) {
	out := make([]*Override, 0, len(r.byKey))
	for _, o := range r.byKey {
		cp := *o
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memoryOverrideRepo) Save(_ context.Context, o *Override) error {
	if o.ID == "" {
		o.ID = "ovr-" + o.Key
	}
	cp := *o
	r.byKey[o.Key] = &cp
	return nil
}

func (r *memoryOverrideRepo) DeleteByKey(_ context.Context, key string) error {
	delete(r.byKey, key)
	return nil
}

func newTestStore() (*Store, *memoryOverrideRepo) {
	repo := newMemoryOverrideRepo()
	s := NewStore(repo)
	s.now = func() time.Time { return time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC) }
	return s, repo
}

func TestStoreContentFallsBackToDefault(t *testing.T) {
	s, _ := newTestStore()

	content, err := s.Content(context.Background(), KeyContractExtractionSystem)
	require.NoError(t, err)
	assert.Contains(t, content, "underwriting guidelines analyst")
}

func TestStoreContentPrefersOverride(t *testing.T) {
	s, repo := newTestStore()
	require.NoError(t, repo.Save(context.Background(), &Override{
		Key:     KeyTermMappingSystem,
		Content: "custom mapping prompt",
	}))

	content, err := s.Content(context.Background(), KeyTermMappingSystem)
	require.NoError(t, err)
	assert.Equal(t, "custom mapping prompt", content)
}

func TestStoreContentUnknownKey(t *testing.T) {
	s, _ := newTestStore()

	_, err := s.Content(context.Background(), "no_such_prompt")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodePromptNotFound))
}

func TestStoreListMergesOverrides(t *testing.T) {
	s, repo := newTestStore()
	require.NoError(t, repo.Save(context.Background(), &Override{
		Key:     KeyContractExtractionUser,
		Content: "tweaked user prompt",
	}))

	prompts, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, prompts, len(Keys()))

	// Catalog order is stable regardless of override presence.
	for i, key := range Keys() {
		assert.Equal(t, key, prompts[i].Key)
	}

	byKey := map[string]*Prompt{}
	for _, p := range prompts {
		byKey[p.Key] = p
	}
	custom := byKey[KeyContractExtractionUser]
	assert.True(t, custom.IsCustom)
	assert.Equal(t, "tweaked user prompt", custom.Content)
	assert.Equal(t, "Contract Extraction - User", custom.DisplayName)

	dflt := byKey[KeyProductSuggestionSystem]
	assert.False(t, dflt.IsCustom)
	assert.Equal(t, "default-"+KeyProductSuggestionSystem, dflt.ID)
}

func TestStoreUpdateCreatesThenReplacesOverride(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	p, err := s.Update(ctx, KeyProductExtractionSystem, "first version")
	require.NoError(t, err)
	assert.True(t, p.IsCustom)
	assert.Equal(t, "first version", p.Content)
	assert.Nil(t, p.UpdatedAt)

	p, err = s.Update(ctx, KeyProductExtractionSystem, "second version")
	require.NoError(t, err)
	assert.Equal(t, "second version", p.Content)
	assert.NotNil(t, p.UpdatedAt)
}

func TestStoreUpdateRejectsUnknownKeyAndEmptyContent(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	_, err := s.Update(ctx, "bogus", "content")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodePromptKeyUnknown))

	_, err = s.Update(ctx, KeyTermMappingSystem, "")
	assert.True(t, apperrors.IsValidation(err))
}

func TestStoreResetRestoresDefault(t *testing.T) {
	s, repo := newTestStore()
	ctx := context.Background()

	_, err := s.Update(ctx, KeyTermMappingSystem, "custom")
	require.NoError(t, err)

	p, err := s.Reset(ctx, KeyTermMappingSystem)
	require.NoError(t, err)
	assert.False(t, p.IsCustom)
	assert.Contains(t, p.Content, "underwriter assistant")
	assert.Empty(t, repo.byKey)

	// Reset without an override is a no-op returning the default.
	p, err = s.Reset(ctx, KeyTermMappingSystem)
	require.NoError(t, err)
	assert.False(t, p.IsCustom)
}

func TestDefaultForAndKeys(t *testing.T) {
	d, ok := DefaultFor(KeyProductExtractionSystem)
	require.True(t, ok)
	assert.Contains(t, d.Content, "{field_count}")

	_, ok = DefaultFor("missing")
	assert.False(t, ok)

	assert.True(t, IsKnownKey(KeyContractExtractionSystem))
	assert.False(t, IsKnownKey(""))
	assert.Equal(t, 5, len(Keys()))
}
