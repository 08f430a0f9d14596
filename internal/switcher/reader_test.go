package switcher

import (
	"context"
	"database/sql"
	"path/filepath"
	"reflect"
	"testing"
)

const schema = `
CREATE TABLE providers (
    id INTEGER PRIMARY KEY,
    name TEXT,
    api_key TEXT,
    base_url TEXT,
    is_active INTEGER NOT NULL DEFAULT 0,
    preset TEXT,
    models TEXT,
    created_at TEXT,
    updated_at TEXT
);
`

// seedDB creates a provider database at dbPath and executes the given
// statements against it, closing the connection before returning so that
// the reader sees a quiescent file.
func seedDB(t *testing.T, dbPath string, stmts ...string) {
	t.Helper()

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
}

func newTestReader(t *testing.T, stmts ...string) *Reader {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cc-switch.db")
	seedDB(t, dbPath, stmts...)
	return NewReader(dbPath)
}

func TestProvidersOrderedByID(t *testing.T) {
	reader := newTestReader(t,
		`INSERT INTO providers (id, name, api_key, is_active) VALUES (2, 'B', 'kb', 1)`,
		`INSERT INTO providers (id, name, api_key, is_active) VALUES (1, 'A', 'ka', 0)`,
	)

	providers := reader.Providers(context.Background())
	if len(providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(providers))
	}
	if providers[0].ID != 1 || providers[1].ID != 2 {
		t.Fatalf("providers not in ascending id order: %+v", providers)
	}

	active := reader.ActiveProvider(context.Background())
	if active == nil {
		t.Fatal("expected an active provider")
	}
	if active.ID != 2 || active.Name != "B" {
		t.Fatalf("unexpected active provider: %+v", active)
	}
}

func TestProvidersIdempotentRead(t *testing.T) {
	reader := newTestReader(t,
		`INSERT INTO providers (id, name, api_key, is_active) VALUES (1, 'A', 'ka', 1)`,
		`INSERT INTO providers (id, name, api_key, is_active) VALUES (2, 'B', 'kb', 0)`,
	)

	first := reader.Providers(context.Background())
	second := reader.Providers(context.Background())
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("consecutive reads differ:\n%+v\n%+v", first, second)
	}
}

func TestActiveProviderTolerance(t *testing.T) {
	t.Run("zero active", func(t *testing.T) {
		reader := newTestReader(t,
			`INSERT INTO providers (id, name, api_key, is_active) VALUES (1, 'A', 'ka', 0)`,
		)
		if active := reader.ActiveProvider(context.Background()); active != nil {
			t.Fatalf("expected nil active provider, got %+v", active)
		}
	})

	t.Run("two active returns first by id", func(t *testing.T) {
		reader := newTestReader(t,
			`INSERT INTO providers (id, name, api_key, is_active) VALUES (5, 'Second', 'k2', 1)`,
			`INSERT INTO providers (id, name, api_key, is_active) VALUES (3, 'First', 'k1', 1)`,
		)
		active := reader.ActiveProvider(context.Background())
		if active == nil {
			t.Fatal("expected an active provider")
		}
		if active.ID != 3 {
			t.Fatalf("expected first active by id, got %+v", active)
		}
	})
}

func TestMalformedModelMappingTolerated(t *testing.T) {
	reader := newTestReader(t,
		`INSERT INTO providers (id, name, api_key, is_active, models) VALUES (1, 'A', 'ka', 0, 'not json{{')`,
		`INSERT INTO providers (id, name, api_key, is_active, models) VALUES (2, 'B', 'kb', 1, '{"fast":"m-fast","advanced":"m-adv"}')`,
	)

	providers := reader.Providers(context.Background())
	if len(providers) != 2 {
		t.Fatalf("malformed mapping must not abort the read, got %d providers", len(providers))
	}
	if providers[0].Models != nil {
		t.Fatalf("malformed mapping should yield no mapping, got %+v", providers[0].Models)
	}
	if providers[1].Models == nil {
		t.Fatal("valid mapping should be parsed")
	}
	if providers[1].Models.Fast != "m-fast" || providers[1].Models.Advanced != "m-adv" {
		t.Fatalf("unexpected mapping: %+v", providers[1].Models)
	}
}

func TestMissingNameDefaulted(t *testing.T) {
	reader := newTestReader(t,
		`INSERT INTO providers (id, name, api_key, is_active) VALUES (1, NULL, 'ka', 0)`,
	)

	providers := reader.Providers(context.Background())
	if len(providers) != 1 {
		t.Fatalf("expected 1 provider, got %d", len(providers))
	}
	if providers[0].Name != DefaultProviderName {
		t.Fatalf("expected placeholder name, got %q", providers[0].Name)
	}
}

func TestTimestampsPassedThroughVerbatim(t *testing.T) {
	reader := newTestReader(t,
		`INSERT INTO providers (id, name, api_key, is_active, created_at, updated_at)
         VALUES (1, 'A', 'ka', 0, '2024-01-02T03:04:05+09:00', 'whenever')`,
	)

	providers := reader.Providers(context.Background())
	if len(providers) != 1 {
		t.Fatalf("expected 1 provider, got %d", len(providers))
	}
	if providers[0].CreatedAt != "2024-01-02T03:04:05+09:00" {
		t.Fatalf("created_at mangled: %q", providers[0].CreatedAt)
	}
	if providers[0].UpdatedAt != "whenever" {
		t.Fatalf("updated_at mangled: %q", providers[0].UpdatedAt)
	}
}

func TestMissingStoreGracefulDegradation(t *testing.T) {
	reader := NewReader(filepath.Join(t.TempDir(), "absent.db"))

	if reader.IsInstalled() {
		t.Fatal("IsInstalled should be false for a missing database")
	}
	if providers := reader.Providers(context.Background()); len(providers) != 0 {
		t.Fatalf("expected empty providers, got %+v", providers)
	}
	if active := reader.ActiveProvider(context.Background()); active != nil {
		t.Fatalf("expected nil active provider, got %+v", active)
	}
}

func TestEndToEndScenario(t *testing.T) {
	reader := newTestReader(t,
		`INSERT INTO providers (id, name, api_key, is_active) VALUES (1, 'A', '', 0)`,
		`INSERT INTO providers (id, name, api_key, is_active) VALUES (2, 'B', '', 1)`,
	)

	providers := reader.Providers(context.Background())
	if len(providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(providers))
	}
	if providers[0].ID != 1 || providers[1].ID != 2 {
		t.Fatalf("providers out of order: %+v", providers)
	}

	active := reader.ActiveProvider(context.Background())
	if active == nil || active.ID != 2 || active.Name != "B" {
		t.Fatalf("expected active provider id=2 name=B, got %+v", active)
	}
}

func TestParseModelMapping(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *ModelMapping
	}{
		{name: "empty", raw: "", want: nil},
		{name: "malformed", raw: "{", want: nil},
		{name: "empty object", raw: "{}", want: nil},
		{name: "unknown keys only", raw: `{"other":"x"}`, want: nil},
		{name: "all slots", raw: `{"fast":"f","balanced":"b","advanced":"a","custom":"c"}`,
			want: &ModelMapping{Fast: "f", Balanced: "b", Advanced: "a", Custom: "c"}},
		{name: "partial", raw: `{"balanced":"b"}`, want: &ModelMapping{Balanced: "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseModelMapping(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("parseModelMapping(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}
