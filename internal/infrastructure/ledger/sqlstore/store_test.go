package sqlstore

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/docstream/ocrkit/internal/core/domain"
)

func closeTo(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newMockStore(t *testing.T, now time.Time) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "sqlite"), fixedClock{t: now}), mock
}

func TestRecordUsageAssignsIDAndTimestamp(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	store, mock := newMockStore(t, now)

	mock.ExpectExec("INSERT INTO usage_records").
		WithArgs(sqlmock.AnyArg(), now, "local", "/tmp/scan.png", 1.2, 0.8, 0.0, true, 91.0, 240).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.RecordUsage(context.Background(), domain.UsageRecord{
		Provider:        "local",
		InputPath:       "/tmp/scan.png",
		InputSizeMB:     1.2,
		DurationSeconds: 0.8,
		Success:         true,
		Confidence:      91,
		CharacterCount:  240,
	})
	if err != nil {
		t.Fatalf("RecordUsage() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCurrentMonthWindowStartsAtCalendarMonth(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	monthStart := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	store, mock := newMockStore(t, now)

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(monthStart).
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(12.5))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(monthStart).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	cost, err := store.CurrentMonthCost(context.Background())
	if err != nil {
		t.Fatalf("CurrentMonthCost() error = %v", err)
	}
	if cost != 12.5 {
		t.Fatalf("cost = %v, want 12.5", cost)
	}
	requests, err := store.CurrentMonthRequests(context.Background())
	if err != nil {
		t.Fatalf("CurrentMonthRequests() error = %v", err)
	}
	if requests != 42 {
		t.Fatalf("requests = %d, want 42", requests)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCostByProviderGroupsRows(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	store, mock := newMockStore(t, now)

	mock.ExpectQuery("GROUP BY provider").
		WithArgs(now.AddDate(0, 0, -30)).
		WillReturnRows(sqlmock.NewRows([]string{"provider", "cost"}).
			AddRow("google_vision", 4.5).
			AddRow("local", 0.0))

	costs, err := store.CostByProvider(context.Background(), 30)
	if err != nil {
		t.Fatalf("CostByProvider() error = %v", err)
	}
	if len(costs) != 2 || costs["google_vision"] != 4.5 {
		t.Fatalf("costs = %v", costs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUsageStatsComputesDerivedFields(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	since := now.AddDate(0, 0, -30)
	store, mock := newMockStore(t, now)

	mock.ExpectQuery("FROM usage_records").
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"count", "cost", "success", "dur", "conf", "chars"}).
			AddRow(4, 0.006, 3, 2.5, 88.0, 1200))
	mock.ExpectQuery("GROUP BY provider").
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"provider", "count", "cost", "dur", "conf"}).
			AddRow("google_vision", 3, 0.006, 1.5, 93.0).
			AddRow("local", 1, 0.0, 5.5, 73.0))

	stats, err := store.UsageStats(context.Background(), 30)
	if err != nil {
		t.Fatalf("UsageStats() error = %v", err)
	}
	if stats.SuccessRate != 75 {
		t.Fatalf("success rate = %v, want 75", stats.SuccessRate)
	}
	if !closeTo(stats.AvgCostPerRequest, 0.0015) {
		t.Fatalf("avg cost per request = %v, want 0.0015", stats.AvgCostPerRequest)
	}
	gv := stats.ByProvider["google_vision"]
	if !closeTo(gv.CostPerRequest, 0.002) {
		t.Fatalf("google_vision cost/request = %v, want 0.002", gv.CostPerRequest)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSetBudgetUpserts(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	store, mock := newMockStore(t, now)

	mock.ExpectExec("INSERT INTO budgets").
		WithArgs("google_vision", 50.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.SetBudget(context.Background(), "google_vision", 50); err != nil {
		t.Fatalf("SetBudget() error = %v", err)
	}
	if err := store.SetBudget(context.Background(), "google_vision", -1); err == nil {
		t.Fatalf("expected error for negative limit")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCleanupOlderThanReportsDeletedRows(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	store, mock := newMockStore(t, now)

	mock.ExpectExec("DELETE FROM usage_records").
		WithArgs(now.AddDate(0, 0, -90)).
		WillReturnResult(sqlmock.NewResult(0, 7))

	deleted, err := store.CleanupOlderThan(context.Background(), 90)
	if err != nil {
		t.Fatalf("CleanupOlderThan() error = %v", err)
	}
	if deleted != 7 {
		t.Fatalf("deleted = %d, want 7", deleted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
