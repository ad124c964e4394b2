package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dreschagin/aip-monitor/internal/domain/entity"
)

func testRecord(uuid string, index int) entity.Record {
	return entity.Record{
		Timestamp: "Fri Mar 07 08:04:05 UTC 2025",
		UUID:      uuid,
		Bus:       "35:00.0",
		Temp:      40,
		UtilAIP:   -1,
		UtilMem:   0,
		MemTotal:  131072,
		MemFree:   130400,
		MemUsed:   672,
		Power:     214,
		Serial:    "S",
		Index:     index,
	}
}

func TestBuildInsert(t *testing.T) {
	got := buildInsert("aip_metrics", []string{"timestamp", "uuid", "index"})
	expected := `INSERT INTO "aip_metrics" ("timestamp", "uuid", "index") VALUES ($1, $2, $3)`
	if got != expected {
		t.Errorf("buildInsert() = %s, want %s", got, expected)
	}
}

func TestToRow(t *testing.T) {
	row, err := ToRow(testRecord("U-0", 3), entity.RecordFields)
	if err != nil {
		t.Fatalf("ToRow() error = %v", err)
	}
	if len(row) != len(entity.RecordFields) {
		t.Fatalf("expected %d values, got %d", len(entity.RecordFields), len(row))
	}
	if row[1] != "U-0" || row[3] != 40.0 || row[4] != -1.0 || row[11] != 3 {
		t.Errorf("unexpected row %v", row)
	}

	if _, err := ToRow(testRecord("U-0", 0), []string{"uuid", "fan_speed"}); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestMetricExporterInitialize(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "aip_metrics" (id BIGSERIAL PRIMARY KEY, "timestamp" TEXT NOT NULL`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	e := NewMetricExporter(db, "aip_metrics")
	if err := e.Initialize(context.Background(), entity.RecordFields); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMetricExporterInitializeRejectsBadTable(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	e := NewMetricExporter(db, `metrics"; DROP TABLE users; --`)
	if err := e.Initialize(context.Background(), entity.RecordFields); err == nil {
		t.Fatal("expected error for invalid table name")
	}
}

func TestMetricExporterInitializeFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS")).
		WillReturnError(errors.New("permission denied"))

	e := NewMetricExporter(db, "aip_metrics")
	if err := e.Initialize(context.Background(), entity.RecordFields); err == nil {
		t.Fatal("expected error")
	}
	if err := e.Write(context.Background(), []entity.Record{testRecord("U-0", 0)}); err == nil {
		t.Fatal("expected error writing to uninitialized table")
	}
}

func TestMetricExporterWrite(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	e := NewMetricExporter(db, "aip_metrics")
	if err := e.Initialize(context.Background(), entity.RecordFields); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO "aip_metrics"`))
	prep.ExpectExec().
		WithArgs("Fri Mar 07 08:04:05 UTC 2025", "U-0", "35:00.0", 40.0, -1.0, 0.0, 131072.0, 130400.0, 672.0, 214.0, "S", 0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().
		WithArgs(sqlmock.AnyArg(), "U-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), 1).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	records := []entity.Record{testRecord("U-0", 0), testRecord("U-1", 1)}
	if err := e.Write(context.Background(), records); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	// empty batch touches nothing
	if err := e.Write(context.Background(), nil); err != nil {
		t.Fatalf("empty Write() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMetricExporterWriteRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	e := NewMetricExporter(db, "aip_metrics")
	if err := e.Initialize(context.Background(), entity.RecordFields); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO "aip_metrics"`)).
		ExpectExec().
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	if err := e.Write(context.Background(), []entity.Record{testRecord("U-0", 0)}); err == nil {
		t.Fatal("expected error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMetricExporterClose(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}

	mock.ExpectClose()
	if err := NewMetricExporter(db, "aip_metrics").Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
