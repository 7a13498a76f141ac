package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	ProviderDeepSeek = "deepseek"
	ProviderOpenAI   = "openai"
)

var (
	ErrInvalidProvider = errors.New("invalid provider")
	ErrMissingKey      = errors.New("API key is required")
	ErrNotFound        = errors.New("settings not found")
)

// Settings are the provider choice and keys of one browser session.
type Settings struct {
	SessionID   string    `json:"session_id"`
	Provider    string    `json:"provider"`
	DeepSeekKey string    `json:"-"`
	OpenAIKey   string    `json:"-"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Status is the public view of Settings; keys are never echoed.
type Status struct {
	Provider       string `json:"provider"`
	HasDeepseekKey bool   `json:"hasDeepseekKey"`
	HasOpenaiKey   bool   `json:"hasOpenaiKey"`
}

// Default returns the settings of a session that never saved any.
func Default(sessionID string) *Settings {
	return &Settings{SessionID: sessionID, Provider: ProviderDeepSeek}
}

// Validate checks that the provider is known and that its key is present.
func (s Settings) Validate() error {
	switch s.Provider {
	case ProviderDeepSeek:
		if s.DeepSeekKey == "" {
			return fmt.Errorf("DeepSeek %w", ErrMissingKey)
		}
	case ProviderOpenAI:
		if s.OpenAIKey == "" {
			return fmt.Errorf("OpenAI %w", ErrMissingKey)
		}
	default:
		return ErrInvalidProvider
	}
	return nil
}

// ActiveKey returns the key of the selected provider.
func (s Settings) ActiveKey() string {
	if s.Provider == ProviderOpenAI {
		return s.OpenAIKey
	}
	return s.DeepSeekKey
}

// Status reports which keys are configured.
func (s Settings) Status() Status {
	return Status{
		Provider:       s.Provider,
		HasDeepseekKey: s.DeepSeekKey != "",
		HasOpenaiKey:   s.OpenAIKey != "",
	}
}

// Store persists settings per session in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates the settings table if needed.
func NewStore(db *sql.DB) (*Store, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS session_settings (
			session_id TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			deepseek_key TEXT NOT NULL DEFAULT '',
			openai_key TEXT NOT NULL DEFAULT '',
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("create settings table: %w", err)
	}
	return &Store{db: db}, nil
}

// Save validates in and merges it into the stored settings of its session.
// Empty keys in the update keep the stored value. A session id is generated
// when in has none.
func (s *Store) Save(ctx context.Context, in Settings) (*Settings, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.SessionID == "" {
		in.SessionID = uuid.NewString()
	}

	merged := in
	existing, err := s.Get(ctx, in.SessionID)
	switch {
	case err == nil:
		if merged.DeepSeekKey == "" {
			merged.DeepSeekKey = existing.DeepSeekKey
		}
		if merged.OpenAIKey == "" {
			merged.OpenAIKey = existing.OpenAIKey
		}
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}
	merged.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO session_settings (session_id, provider, deepseek_key, openai_key, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			provider = excluded.provider,
			deepseek_key = excluded.deepseek_key,
			openai_key = excluded.openai_key,
			updated_at = excluded.updated_at`,
		merged.SessionID, merged.Provider, merged.DeepSeekKey, merged.OpenAIKey, merged.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &merged, nil
}

// Get loads the settings of sessionID.
func (s *Store) Get(ctx context.Context, sessionID string) (*Settings, error) {
	var out Settings
	err := s.db.QueryRowContext(ctx,
		"SELECT session_id, provider, deepseek_key, openai_key, updated_at FROM session_settings WHERE session_id = ?",
		sessionID,
	).Scan(&out.SessionID, &out.Provider, &out.DeepSeekKey, &out.OpenAIKey, &out.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Resolve returns the stored settings of sessionID or the defaults.
func (s *Store) Resolve(ctx context.Context, sessionID string) (*Settings, error) {
	if sessionID == "" {
		return Default(""), nil
	}
	out, err := s.Get(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return Default(sessionID), nil
	}
	return out, err
}
