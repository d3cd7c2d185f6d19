package service_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/cortexai/analytics/internal/security"
	"github.com/cortexai/analytics/internal/service"
)

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func validated(t *testing.T, raw string) security.ValidatedSQL {
	t.Helper()
	res := defaultValidator().Validate(security.RawSQL(raw))
	if !res.Valid {
		t.Fatalf("fixture SQL rejected: %s", res.ErrorMessage)
	}
	return *res.SanitizedSQL
}

func TestPostgresRunnerRunQuery(t *testing.T) {
	db, mock := newSQLMock(t)
	runner := service.NewPostgresRunner(db, time.Second)

	stmt := validated(t, "SELECT fecha, banco_nombre, imor FROM monthly_kpis WHERE banco_nombre = 'INVEX' ORDER BY fecha ASC")
	jan := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(stmt.String()).
		WillReturnRows(sqlmock.NewRows([]string{"fecha", "banco_nombre", "imor"}).
			AddRow(jan, "INVEX", []byte("2.31")).
			AddRow(feb, "INVEX", 2.4))

	res, err := runner.RunQuery(context.Background(), stmt)
	if err != nil {
		t.Fatalf("RunQuery() error = %v", err)
	}
	if res.RowCount != 2 || len(res.Columns) != 3 {
		t.Fatalf("got %d rows, columns %v", res.RowCount, res.Columns)
	}
	if got := res.Rows[0]["imor"]; got != "2.31" {
		t.Errorf("byte value = %#v, want string", got)
	}
	if got := res.Rows[1]["imor"]; got != 2.4 {
		t.Errorf("float value = %#v", got)
	}
	if got, ok := res.Rows[0]["fecha"].(time.Time); !ok || !got.Equal(jan) {
		t.Errorf("fecha = %#v", res.Rows[0]["fecha"])
	}
	assertSQLMock(t, mock)
}

func TestPostgresRunnerEmptyResult(t *testing.T) {
	db, mock := newSQLMock(t)
	runner := service.NewPostgresRunner(db, 0)

	stmt := validated(t, "SELECT AVG(icap), MIN(icap), MAX(icap) FROM monthly_kpis WHERE banco_nombre = 'NADIE'")
	mock.ExpectQuery(stmt.String()).WillReturnRows(sqlmock.NewRows([]string{"avg", "min", "max"}))

	res, err := runner.RunQuery(context.Background(), stmt)
	if err != nil {
		t.Fatal(err)
	}
	if res.RowCount != 0 || res.Rows == nil {
		t.Errorf("want empty non-nil rows, got %#v", res.Rows)
	}
	assertSQLMock(t, mock)
}

func TestPostgresRunnerErrors(t *testing.T) {
	db, mock := newSQLMock(t)
	runner := service.NewPostgresRunner(db, time.Second)

	if _, err := runner.RunQuery(context.Background(), security.ValidatedSQL{}); err == nil {
		t.Error("zero ValidatedSQL must be refused")
	}

	stmt := validated(t, "SELECT fecha, imor FROM monthly_kpis")
	mock.ExpectQuery(stmt.String()).WillReturnError(errors.New("relation does not exist"))
	if _, err := runner.RunQuery(context.Background(), stmt); err == nil {
		t.Error("driver error not propagated")
	}
	assertSQLMock(t, mock)
}
