package prompt

import (
	"context"
	"time"

	apperrors "github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

// Override is a stored custom prompt that shadows a compiled-in default.
type Override struct {
	ID          string     `json:"id"`
	Key         string     `json:"prompt_key"`
	DisplayName string     `json:"display_name,omitempty"`
	Description string     `json:"description,omitempty"`
	Content     string     `json:"prompt_content"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Prompt is the resolved view of one prompt: the override when present,
// otherwise the default.  IsCustom tells the two apart.
type Prompt struct {
	ID          string     `json:"id"`
	Key         string     `json:"prompt_key"`
	DisplayName string     `json:"display_name"`
	Description string     `json:"description,omitempty"`
	Content     string     `json:"prompt_content"`
	IsCustom    bool       `json:"is_custom"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// OverrideRepository defines persistence for prompt overrides.
type OverrideRepository interface {
	FindByKey(ctx context.Context, key string) (*Override, error)
	FindAll(ctx context.Context) ([]*Override, error)
	Save(ctx context.Context, o *Override) error
	DeleteByKey(ctx context.Context, key string) error
}

// Store resolves prompts two ways: stored overrides win, compiled-in
// defaults fill the rest.
type Store struct {
	repo OverrideRepository
	now  func() time.Time
}

// NewStore builds a Store over the given override repository.
func NewStore(repo OverrideRepository) *Store {
	return &Store{repo: repo, now: time.Now}
}

// Content returns the effective prompt text for a key.  This is the hot path
// used by the extraction pipeline.
func (s *Store) Content(ctx context.Context, key string) (string, error) {
	d, known := defaults[key]
	if !known {
		return "", apperrors.New(apperrors.ErrCodePromptNotFound, "unknown prompt key: "+key)
	}
	o, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return d.Content, nil
		}
		return "", err
	}
	return o.Content, nil
}

// List returns the full catalog, overrides merged over defaults, in catalog
// order.
func (s *Store) List(ctx context.Context) ([]*Prompt, error) {
	overrides, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]*Override, len(overrides))
	for _, o := range overrides {
		byKey[o.Key] = o
	}

	out := make([]*Prompt, 0, len(defaultOrder))
	for _, key := range defaultOrder {
		if o, ok := byKey[key]; ok {
			out = append(out, s.resolved(key, o))
			continue
		}
		out = append(out, s.defaultPrompt(key))
	}
	return out, nil
}

// Get returns the resolved prompt for one key.
func (s *Store) Get(ctx context.Context, key string) (*Prompt, error) {
	if !IsKnownKey(key) {
		return nil, apperrors.New(apperrors.ErrCodePromptNotFound, "prompt not found: "+key)
	}
	o, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return s.defaultPrompt(key), nil
		}
		return nil, err
	}
	return s.resolved(key, o), nil
}

// Update creates or replaces the override content for a key and returns the
// resolved prompt.
func (s *Store) Update(ctx context.Context, key, content string) (*Prompt, error) {
	d, known := defaults[key]
	if !known {
		return nil, apperrors.New(apperrors.ErrCodePromptKeyUnknown, "unknown prompt key: "+key)
	}
	if content == "" {
		return nil, apperrors.NewValidationError("prompt content must not be empty")
	}

	now := s.now()
	o, err := s.repo.FindByKey(ctx, key)
	switch {
	case err == nil:
		o.Content = content
		o.UpdatedAt = &now
	case apperrors.IsNotFound(err):
		o = &Override{
			Key:         key,
			DisplayName: d.DisplayName,
			Description: d.Description,
			Content:     content,
			CreatedAt:   now,
		}
	default:
		return nil, err
	}
	if err := s.repo.Save(ctx, o); err != nil {
		return nil, err
	}
	return s.resolved(key, o), nil
}

// Reset deletes the override for a key, if any, and returns the default.
func (s *Store) Reset(ctx context.Context, key string) (*Prompt, error) {
	if !IsKnownKey(key) {
		return nil, apperrors.New(apperrors.ErrCodePromptKeyUnknown, "unknown prompt key: "+key)
	}
	if err := s.repo.DeleteByKey(ctx, key); err != nil && !apperrors.IsNotFound(err) {
		return nil, err
	}
	return s.defaultPrompt(key), nil
}

func (s *Store) resolved(key string, o *Override) *Prompt {
	d := defaults[key]
	p := &Prompt{
		ID:          o.ID,
		Key:         key,
		DisplayName: o.DisplayName,
		Description: o.Description,
		Content:     o.Content,
		IsCustom:    true,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
	if p.DisplayName == "" {
		p.DisplayName = d.DisplayName
	}
	if p.Description == "" {
		p.Description = d.Description
	}
	return p
}

func (s *Store) defaultPrompt(key string) *Prompt {
	d := defaults[key]
	return &Prompt{
		ID:          "default-" + key,
		Key:         key,
		DisplayName: d.DisplayName,
		Description: d.Description,
		Content:     d.Content,
		IsCustom:    false,
		CreatedAt:   s.now(),
	}
}
