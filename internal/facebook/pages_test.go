package facebook

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/GogiGunia/Toolidol/internal/protect"
)

func testProtector(t *testing.T) *protect.Protector {
	t.Helper()
	p, err := protect.New([]byte("test-master-key"), TokenPurpose)
	if err != nil {
		t.Fatalf("protect.New: %v", err)
	}
	return p
}

func TestSaveOrUpdateUpsertsAllPagesInOneTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	pages := []PageAccount{
		{ID: "p1", Name: "Alpha", AccessToken: "pt1", Category: "Retail"},
		{ID: "p2", Name: "Beta", AccessToken: "pt2"},
	}

	mock.ExpectBegin()
	upsert := regexp.QuoteMeta(`INSERT INTO facebook_pages`)
	for _, p := range pages {
		mock.ExpectExec(upsert).
			WithArgs("u7", p.ID, p.Name, p.Category, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	store := NewGrantStore(db, testProtector(t))
	if err := store.SaveOrUpdate(context.Background(), "u7", pages); err != nil {
		t.Fatalf("SaveOrUpdate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSaveOrUpdateRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO facebook_pages`)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	store := NewGrantStore(db, testProtector(t))
	err = store.SaveOrUpdate(context.Background(), "u7", []PageAccount{{ID: "p1", Name: "Alpha", AccessToken: "pt1"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestListForOwnerOmitsTokens(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "page_id", "page_name", "category", "updated_at"}).
		AddRow(int64(1), "u7", "p1", "Alpha", "Retail", now).
		AddRow(int64(2), "u7", "p2", "Beta", "", now)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, page_id, page_name, category, updated_at`)).
		WithArgs("u7").
		WillReturnRows(rows)

	store := NewGrantStore(db, testProtector(t))
	grants, err := store.ListForOwner(context.Background(), "u7")
	if err != nil {
		t.Fatalf("ListForOwner: %v", err)
	}
	if len(grants) != 2 {
		t.Fatalf("got %d grants, want 2", len(grants))
	}
	if grants[0].PageID != "p1" || grants[0].PageName != "Alpha" {
		t.Errorf("first grant = %+v", grants[0])
	}
}

func TestDecryptedTokenRoundTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	p := testProtector(t)
	ciphertext, err := p.Encrypt("page-token-p1")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT token_ciphertext FROM facebook_pages`)).
		WithArgs("u7", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"token_ciphertext"}).AddRow(ciphertext))

	store := NewGrantStore(db, p)
	token, err := store.DecryptedToken(context.Background(), "u7", "p1")
	if err != nil {
		t.Fatalf("DecryptedToken: %v", err)
	}
	if token != "page-token-p1" {
		t.Errorf("token = %q", token)
	}
}

func TestDecryptedTokenNoGrant(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT token_ciphertext FROM facebook_pages`)).
		WithArgs("u7", "absent").
		WillReturnRows(sqlmock.NewRows([]string{"token_ciphertext"}))

	store := NewGrantStore(db, testProtector(t))
	if _, err := store.DecryptedToken(context.Background(), "u7", "absent"); !errors.Is(err, ErrNoGrant) {
		t.Fatalf("err = %v, want ErrNoGrant", err)
	}
}

func TestDisconnectAllZeroRowsIsSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM facebook_pages`)).
		WithArgs("u7").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewGrantStore(db, testProtector(t))
	if err := store.DisconnectAll(context.Background(), "u7"); err != nil {
		t.Fatalf("DisconnectAll: %v", err)
	}
}
