package user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/GogiGunia/Toolidol/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const userColumns = `id, email, first_name, last_name, password_hash, password_reset_token, password_reset_expiry, role, created_at`

func (s *PGStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, email, first_name, last_name, password_hash, role) values($1,$2,$3,$4,$5,$6)`,
		u.ID, u.Email, u.FirstName, u.LastName, u.PasswordHash, string(u.Role),
	)
	return err
}

func (s *PGStore) FindByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (s *PGStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where lower(email)=lower($1)`, email)
	return scanUser(row)
}

func (s *PGStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from users where lower(email)=lower($1))`, email).Scan(&exists)
	return exists, err
}

func (s *PGStore) HasAny(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `select exists(select 1 from users)`).Scan(&exists)
	return exists, err
}

func (s *PGStore) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash=$2 where id=$1`, userID, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) SetResetIdentifier(ctx context.Context, userID, identifier string, expiry time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_reset_token=$2, password_reset_expiry=$3 where id=$1`,
		userID, identifier, expiry)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) ClearResetIdentifier(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_reset_token=null, password_reset_expiry=null where id=$1`, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanUser(row *sql.Row) (*User, error) {
	var (
		u          User
		resetToken sql.NullString
		resetExp   sql.NullTime
		role       string
	)
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash,
		&resetToken, &resetExp, &role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if resetToken.Valid {
		u.ResetIdentifier = resetToken.String
	}
	if resetExp.Valid {
		t := resetExp.Time
		u.ResetExpiry = &t
	}
	u.Role = Role(role)
	return &u, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
