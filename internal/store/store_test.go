package store

import (
	"context"
	"isa-registry/internal/components/chrono"
	"isa-registry/internal/components/telemetry"
	"isa-registry/internal/registry"
	"isa-registry/internal/scrapers/isa"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

func setup(t testing.TB, now time.Time) Store {
	db, err := OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db, chrono.FixedImpl{Time: now}, telemetry.NewRecorder())
}

func testResult() registry.Result {
	return registry.Result{
		Category: registry.BACHELOR,
		Reports: map[string]isa.ReportID{
			"Informatique, 2007-2008, Bachelor semestre 1": {
				Code:  "39486325",
				Label: "Informatique, 2007-2008, Bachelor semestre 1",
			},
			"Informatique, 2016-2017, Bachelor semestre 1": {
				Code:  "1866893861",
				Label: "Informatique, 2016-2017, Bachelor semestre 1",
			},
		},
		Tables: isa.Tables{
			"Informatique, 2007-2008, Bachelor semestre 1": {},
			"Informatique, 2016-2017, Bachelor semestre 1": {
				{Gender: "Monsieur", Name: "Dupont Jean", Specialization: "", Minor: " ", Status: "Présent", Sciper: "123456"},
				{Gender: "Madame", Name: "Martin Claire", Specialization: "", Minor: "", Status: "Congé", Sciper: "234567"},
			},
		},
		Skipped: []isa.LinkOutcome{{
			Label:   "Informatique, 2009-2010, Bachelor semestre 1",
			Skipped: true,
			Reason:  "onclick has no report code",
		}},
		Duplicates: []isa.ReportID{{
			Code:  "789",
			Label: "Informatique, 2016-2017, Bachelor semestre 1",
		}},
		Dropped: []isa.ReportID{{
			Code:  "1",
			Label: "Informatique, 2006-2007, Bachelor semestre 1",
		}},
	}
}

func TestSaveLatest(t *testing.T) {
	now := time.Date(2017, time.March, 1, 12, 0, 0, 0, time.UTC)
	store := setup(t, now)
	ctx := context.Background()

	id, err := store.Save(ctx, testResult())
	if err != nil {
		t.Fatal(err)
	}

	snapshot, err := store.Latest(ctx, registry.BACHELOR)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, id, snapshot.ID)
	require.True(t, now.Equal(snapshot.CreatedAt))

	if diff := cmp.Diff(testResult(), snapshot.Result, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
	// a report without students is still present
	table, ok := snapshot.Result.Tables["Informatique, 2007-2008, Bachelor semestre 1"]
	require.True(t, ok)
	require.NotNil(t, table)
	require.Empty(t, table)
}

func TestLatestPicksNewest(t *testing.T) {
	store := setup(t, time.Unix(100, 0))
	ctx := context.Background()

	_, err := store.Save(ctx, testResult())
	if err != nil {
		t.Fatal(err)
	}

	newer := registry.Result{
		Category: registry.BACHELOR,
		Reports:  map[string]isa.ReportID{"x, 2020-2021, y": {Code: "2", Label: "x, 2020-2021, y"}},
		Tables:   isa.Tables{"x, 2020-2021, y": {{Sciper: "999999"}}},
	}
	newerId, err := store.Save(ctx, newer)
	if err != nil {
		t.Fatal(err)
	}

	snapshot, err := store.Latest(ctx, registry.BACHELOR)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, newerId, snapshot.ID)
	if diff := cmp.Diff(newer, snapshot.Result, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("latest mismatch (-want +got):\n%s", diff)
	}
}

func TestLatestMissing(t *testing.T) {
	store := setup(t, time.Unix(100, 0))

	_, err := store.Latest(context.Background(), registry.MASTER)
	require.ErrorIs(t, err, ErrNoSnapshot)
}

func TestOpenDBFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "registry.db")

	db, err := OpenDB(path)
	if err != nil {
		t.Fatal(err)
	}
	store := NewStore(db, chrono.FixedImpl{Time: time.Unix(100, 0)}, telemetry.NewRecorder())
	_, err = store.Save(context.Background(), testResult())
	if err != nil {
		t.Fatal(err)
	}
	require.NoError(t, db.Close())

	// schema creation is idempotent
	db, err = OpenDB(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	store = NewStore(db, chrono.FixedImpl{Time: time.Unix(100, 0)}, telemetry.NewRecorder())
	snapshot, err := store.Latest(context.Background(), registry.BACHELOR)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, snapshot.Result.Reports, 2)
}
