package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/perkhub/loyalty-gateway/internal/model"
)

func newIdemRepo(t *testing.T) (*IdempotencyRepositoryImpl, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewIdempotencyRepository(sqlx.NewDb(db, "sqlmock")), mock
}

// The pre-insert cleanup must reclaim both expired completed rows and
// abandoned in-flight claims; an in_flight row has no expires_at, so without
// the age-out a crash between claim and complete blocks the key forever.
func TestInsertInFlightReclaimsStaleClaims(t *testing.T) {
	repo, mock := newIdemRepo(t)

	mock.ExpectExec(`(?s)DELETE FROM idempotency_keys.*status = 'in_flight' AND created_at <= NOW\(\) - INTERVAL \? MINUTE`).
		WithArgs(int64(7), "idem-1", staleClaimMinutes).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO idempotency_keys`).
		WithArgs(int64(7), "idem-1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	inserted, existing, err := repo.InsertInFlight(context.Background(), 7, "idem-1")
	if err != nil {
		t.Fatalf("InsertInFlight: %v", err)
	}
	if !inserted || existing != nil {
		t.Fatalf("inserted=%v existing=%v, want fresh claim", inserted, existing)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestInsertInFlightDuplicateReadsWinner(t *testing.T) {
	repo, mock := newIdemRepo(t)

	mock.ExpectExec(`DELETE FROM idempotency_keys`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO idempotency_keys`).
		WillReturnError(&mysql.MySQLError{Number: 1062})
	mock.ExpectQuery(`SELECT id, business_id, idem_key, status`).
		WithArgs(int64(7), "idem-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "business_id", "idem_key", "status", "response_status", "response_body"}).
			AddRow(1, 7, "idem-1", "in_flight", 0, nil))

	inserted, existing, err := repo.InsertInFlight(context.Background(), 7, "idem-1")
	if err != nil {
		t.Fatalf("InsertInFlight: %v", err)
	}
	if inserted {
		t.Fatal("lost the race but reported ownership")
	}
	if existing == nil || existing.Status != model.IdemInFlight {
		t.Fatalf("existing = %+v, want the in_flight winner", existing)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

// The sweeper's delete must also age out abandoned in-flight claims, not just
// rows whose completion TTL has elapsed.
func TestDeleteExpiredSweepsAbandonedClaims(t *testing.T) {
	repo, mock := newIdemRepo(t)

	mock.ExpectExec(`(?s)DELETE FROM idempotency_keys.*expires_at IS NOT NULL AND expires_at <= NOW\(\).*status = 'in_flight' AND created_at <= NOW\(\) - INTERVAL \? MINUTE`).
		WithArgs(staleClaimMinutes).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteExpired(context.Background())
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 3 {
		t.Fatalf("removed = %d, want 3", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
