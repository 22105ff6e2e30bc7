package facebook

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/GogiGunia/Toolidol/internal/protect"
)

// TokenPurpose scopes the protector key used for page access tokens.
const TokenPurpose = "facebook.page.access-token"

// ErrNoGrant indicates the user has no persisted page grant.
var ErrNoGrant = errors.New("facebook: no page grant for user")

// Grant is one persisted page connection for a user. Token material is
// never carried here; use DecryptedToken when a plaintext token is needed.
type Grant struct {
	ID        int64
	UserID    string
	PageID    string
	PageName  string
	Category  string
	UpdatedAt time.Time
}

// GrantStore persists page grants with access tokens encrypted at rest.
type GrantStore struct {
	db        *sql.DB
	protector *protect.Protector
}

func NewGrantStore(db *sql.DB, protector *protect.Protector) *GrantStore {
	return &GrantStore{db: db, protector: protector}
}

// SaveOrUpdate upserts the full page set for a user in a single
// transaction: either every page lands or none do. Re-running with the
// same pages refreshes tokens in place, keyed by (user_id, page_id).
func (s *GrantStore) SaveOrUpdate(ctx context.Context, userID string, pages []PageAccount) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("facebook: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `INSERT INTO facebook_pages (user_id, page_id, page_name, category, token_ciphertext, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (user_id, page_id)
DO UPDATE SET page_name = EXCLUDED.page_name,
              category = EXCLUDED.category,
              token_ciphertext = EXCLUDED.token_ciphertext,
              updated_at = now()`

	for _, p := range pages {
		ciphertext, err := s.protector.Encrypt(p.AccessToken)
		if err != nil {
			return fmt.Errorf("facebook: encrypt page token: %w", err)
		}
		if _, err := tx.ExecContext(ctx, q, userID, p.ID, p.Name, p.Category, ciphertext); err != nil {
			return fmt.Errorf("facebook: upsert page %s: %w", p.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("facebook: commit: %w", err)
	}
	return nil
}

// ListForOwner returns the user's grants without token material.
func (s *GrantStore) ListForOwner(ctx context.Context, userID string) ([]Grant, error) {
	const q = `SELECT id, user_id, page_id, page_name, category, updated_at
FROM facebook_pages WHERE user_id = $1 ORDER BY page_name`

	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("facebook: list grants: %w", err)
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.ID, &g.UserID, &g.PageID, &g.PageName, &g.Category, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("facebook: scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// DecryptedToken returns the plaintext page token for one grant. Callers
// must not log or persist the result.
func (s *GrantStore) DecryptedToken(ctx context.Context, userID string, pageID string) (string, error) {
	const q = `SELECT token_ciphertext FROM facebook_pages WHERE user_id = $1 AND page_id = $2`

	var ciphertext string
	err := s.db.QueryRowContext(ctx, q, userID, pageID).Scan(&ciphertext)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoGrant
	}
	if err != nil {
		return "", fmt.Errorf("facebook: load grant: %w", err)
	}
	token, err := s.protector.Decrypt(ciphertext)
	if err != nil {
		return "", fmt.Errorf("facebook: decrypt page token: %w", err)
	}
	return token, nil
}

// DisconnectAll removes every grant for the user. Removing zero rows is
// success: the end state is identical.
func (s *GrantStore) DisconnectAll(ctx context.Context, userID string) error {
	const q = `DELETE FROM facebook_pages WHERE user_id = $1`
	if _, err := s.db.ExecContext(ctx, q, userID); err != nil {
		return fmt.Errorf("facebook: disconnect: %w", err)
	}
	return nil
}
