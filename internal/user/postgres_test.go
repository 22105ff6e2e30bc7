package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "first_name", "last_name", "password_hash",
		"password_reset_token", "password_reset_expiry", "role", "created_at",
	})
}

func TestPGStoreFindByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`select .* from users where lower\(email\)=lower\(\$1\)`).
		WithArgs("A@B.com").
		WillReturnRows(userRows().AddRow(
			"01J", "a@b.com", "Ada", "Lovelace", "hash",
			nil, nil, "Admin", created,
		))

	store := NewPGStore(db)
	u, err := store.FindByEmail(context.Background(), "A@B.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if u.Email != "a@b.com" || u.Role != RoleAdmin {
		t.Fatalf("unexpected user: %+v", u)
	}
	if u.ResetIdentifier != "" || u.ResetExpiry != nil {
		t.Fatalf("expected empty reset fields, got %+v", u)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreFindByEmailNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`select .* from users`).
		WithArgs("missing@b.com").
		WillReturnRows(userRows())

	store := NewPGStore(db)
	if _, err := store.FindByEmail(context.Background(), "missing@b.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGStoreCreateAssignsID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`insert into users`).
		WithArgs(sqlmock.AnyArg(), "a@b.com", "Ada", "Lovelace", "hash", "Admin").
		WillReturnResult(sqlmock.NewResult(1, 1))

	store := NewPGStore(db)
	u := &User{Email: "a@b.com", FirstName: "Ada", LastName: "Lovelace", PasswordHash: "hash", Role: RoleAdmin}
	if err := store.Create(context.Background(), u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.ID == "" {
		t.Fatalf("expected generated id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreSetResetIdentifier(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	expiry := time.Now().Add(time.Hour)
	mock.ExpectExec(`update users set password_reset_token=\$2, password_reset_expiry=\$3 where id=\$1`).
		WithArgs("01J", "ident", expiry).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPGStore(db)
	if err := store.SetResetIdentifier(context.Background(), "01J", "ident", expiry); err != nil {
		t.Fatalf("SetResetIdentifier: %v", err)
	}
}

func TestPGStoreUpdatePasswordHashUnknownUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`update users set password_hash=\$2 where id=\$1`).
		WithArgs("nope", "hash").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewPGStore(db)
	if err := store.UpdatePasswordHash(context.Background(), "nope", "hash"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
