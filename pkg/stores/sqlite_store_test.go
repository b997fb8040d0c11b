package stores

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/plusconf/plusconf/pkg/engine"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testResult(passID string, pages ...string) *engine.Result {
	result := engine.EmptyResult(passID)
	for _, loc := range pages {
		result.Pages = append(result.Pages, &engine.PageConfig{
			LocationID:      loc,
			RouteFilesystem: &engine.RouteFilesystem{RouteString: loc, DefinedBy: loc},
			Sources:         engine.ValueSources{},
			Values: engine.ConfigValues{
				"title": {Value: "Title of " + loc, DefinedAt: engine.DefinedAt{File: &engine.DefinedAtFile{File: loc + "/+title.star"}}},
			},
		})
	}
	result.StartedAt = time.Now().Add(-time.Second)
	result.Duration = 250 * time.Millisecond
	return result
}

func TestStoreLifecycle(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr bool
	}{
		{name: "in memory", path: func(*testing.T) string { return ":memory:" }},
		{name: "file", path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "passes.db") }},
		{name: "missing path", path: func(*testing.T) string { return "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewSQLiteStore(Config{Path: tt.path(t)})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewSQLiteStore() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			ctx := context.Background()
			if err := store.Init(ctx); err != nil {
				t.Fatalf("failed to initialize store: %v", err)
			}
			if err := store.Migrate(ctx); err != nil {
				t.Fatalf("failed to migrate store: %v", err)
			}
			// Migrating twice is a no-op.
			if err := store.Migrate(ctx); err != nil {
				t.Fatalf("second migration failed: %v", err)
			}
			if err := store.HealthCheck(ctx); err != nil {
				t.Fatalf("health check failed: %v", err)
			}
			if err := store.Close(); err != nil {
				t.Fatalf("failed to close store: %v", err)
			}
		})
	}
}

func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, table := range []string{"passes", "snapshots", "warnings"} {
		var count int
		if err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}
}

func TestHealthCheckUninitialized(t *testing.T) {
	store, err := NewSQLiteStore(Config{Path: ":memory:"})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.HealthCheck(context.Background()); err == nil {
		t.Error("expected an error before Init")
	}
	if err := store.Migrate(context.Background()); err == nil {
		t.Error("expected Migrate to fail before Init")
	}
}

func TestRecord(t *testing.T) {
	usageErr := engine.Usagef("/pages/+config.yaml sets an unknown config tilte").WithCode(engine.ErrCodeUnknownConfig)

	tests := []struct {
		name      string
		passID    string
		result    *engine.Result
		err       error
		checkFunc func(t *testing.T, store *SQLiteStore)
	}{
		{
			name:   "successful pass",
			passID: "pass-ok",
			result: func() *engine.Result {
				r := testResult("pass-ok", "/pages/about", "/pages/index")
				r.Warnings = []engine.Warning{{Message: "first"}, {Message: "second", Key: "once"}}
				return r
			}(),
			checkFunc: func(t *testing.T, store *SQLiteStore) {
				ctx := context.Background()
				pass, err := store.GetPass(ctx, "pass-ok")
				if err != nil {
					t.Fatalf("GetPass() error = %v", err)
				}
				if pass.Status != PassStatusSuccess || pass.Error != nil {
					t.Errorf("unexpected pass: %+v", pass)
				}
				if pass.PageCount != 2 || pass.WarningCount != 2 || pass.DurationMS != 250 {
					t.Errorf("pages = %d, warnings = %d, duration = %d", pass.PageCount, pass.WarningCount, pass.DurationMS)
				}

				warnings, err := store.ListWarnings(ctx, "pass-ok")
				if err != nil {
					t.Fatalf("ListWarnings() error = %v", err)
				}
				if len(warnings) != 2 || warnings[0].Message != "first" || warnings[1].Key != "once" {
					t.Errorf("unexpected warnings: %+v", warnings)
				}

				snap, err := store.GetSnapshot(ctx, "pass-ok")
				if err != nil {
					t.Fatalf("GetSnapshot() error = %v", err)
				}
				result, err := snap.Result()
				if err != nil {
					t.Fatalf("Result() error = %v", err)
				}
				page := result.Page("/pages/about")
				if page == nil || page.Values["title"].Value != "Title of /pages/about" {
					t.Errorf("snapshot lost the page values: %+v", page)
				}
			},
		},
		{
			name:   "failed pass without result",
			passID: "pass-failed",
			err:    usageErr,
			checkFunc: func(t *testing.T, store *SQLiteStore) {
				ctx := context.Background()
				pass, err := store.GetPass(ctx, "pass-failed")
				if err != nil {
					t.Fatalf("GetPass() error = %v", err)
				}
				if pass.Status != PassStatusFailed || pass.Error == nil || pass.ErrorCode == nil {
					t.Fatalf("unexpected pass: %+v", pass)
				}
				if *pass.ErrorCode != engine.ErrCodeUnknownConfig {
					t.Errorf("error code = %s", *pass.ErrorCode)
				}
				if _, err := store.GetSnapshot(ctx, "pass-failed"); !errors.Is(err, ErrNotFound) {
					t.Errorf("a failed pass has no snapshot, got %v", err)
				}
			},
		},
		{
			name:   "plain error has no code",
			passID: "pass-io",
			err:    errors.New("disk on fire"),
			checkFunc: func(t *testing.T, store *SQLiteStore) {
				pass, err := store.GetPass(context.Background(), "pass-io")
				if err != nil {
					t.Fatalf("GetPass() error = %v", err)
				}
				if pass.ErrorCode != nil || *pass.Error != "disk on fire" {
					t.Errorf("unexpected pass: %+v", pass)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)
			if err := store.Record(context.Background(), tt.passID, tt.result, tt.err); err != nil {
				t.Fatalf("Record() error = %v", err)
			}
			tt.checkFunc(t, store)
		})
	}
}

func TestRecordDuplicatePass(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.Record(ctx, "dup", testResult("dup"), nil); err != nil {
		t.Fatal(err)
	}
	if err := store.Record(ctx, "dup", testResult("dup"), nil); err == nil {
		t.Fatal("expected recording the same pass twice to fail")
	}

	// The failed transaction must not leave partial rows behind.
	passes, err := store.ListPasses(ctx, nil, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(passes) != 1 {
		t.Errorf("got %d passes", len(passes))
	}
}

func TestLastValid(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.LastValid(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LastValid() on an empty store = %v", err)
	}

	steps := []struct {
		passID string
		err    error
	}{
		{passID: "p1"},
		{passID: "p2"},
		{passID: "p3", err: engine.Usagef("broken")},
	}
	for _, step := range steps {
		var result *engine.Result
		if step.err == nil {
			result = testResult(step.passID, "/pages/"+step.passID)
		}
		if err := store.Record(ctx, step.passID, result, step.err); err != nil {
			t.Fatalf("Record(%s) error = %v", step.passID, err)
		}
	}

	snap, err := store.LastValid(ctx)
	if err != nil {
		t.Fatalf("LastValid() error = %v", err)
	}
	if snap.PassID != "p2" {
		t.Errorf("LastValid() = %s, want p2", snap.PassID)
	}
}

func TestListPasses(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c", "d"} {
		var passErr error
		var result *engine.Result
		if i%2 == 1 {
			passErr = engine.Usagef("pass %s failed", id)
		} else {
			result = testResult(id)
		}
		if err := store.Record(ctx, id, result, passErr); err != nil {
			t.Fatal(err)
		}
	}

	failed := PassStatusFailed
	tests := []struct {
		name    string
		status  *PassStatus
		limit   int
		offset  int
		wantIDs []string
	}{
		{name: "all", limit: 10, wantIDs: []string{"d", "c", "b", "a"}},
		{name: "paged", limit: 2, offset: 1, wantIDs: []string{"c", "b"}},
		{name: "failed only", status: &failed, limit: 10, wantIDs: []string{"d", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passes, err := store.ListPasses(ctx, tt.status, tt.limit, tt.offset)
			if err != nil {
				t.Fatalf("ListPasses() error = %v", err)
			}
			var got []string
			for _, p := range passes {
				got = append(got, p.ID)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("ListPasses() = %v, want %v", got, tt.wantIDs)
			}
			for i := range got {
				if got[i] != tt.wantIDs[i] {
					t.Errorf("ListPasses() = %v, want %v", got, tt.wantIDs)
					break
				}
			}
		})
	}
}

func TestDeletePassesBefore(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	r := testResult("old")
	r.Warnings = []engine.Warning{{Message: "stale"}}
	if err := store.Record(ctx, "old", r, nil); err != nil {
		t.Fatal(err)
	}

	deleted, err := store.DeletePassesBefore(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("DeletePassesBefore() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	if _, err := store.GetSnapshot(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("snapshot must be deleted with its pass, got %v", err)
	}
	warnings, err := store.ListWarnings(ctx, "old")
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings must be deleted with their pass")
	}
}
