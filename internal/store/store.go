package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"isa-registry/internal/components/assert"
	"isa-registry/internal/components/chrono"
	"isa-registry/internal/components/telemetry"
	"isa-registry/internal/registry"
	"isa-registry/internal/scrapers/isa"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

var tracer = otel.Tracer("isa-registry.store")

const (
	OUTCOME_EXTRACTED = "extracted"
	OUTCOME_SKIPPED   = "skipped"
	OUTCOME_DUPLICATE = "duplicate"
	OUTCOME_DROPPED   = "dropped"
)

const report_store_save = "store.save"

// ErrNoSnapshot is returned when no extraction was ever saved for a category.
var ErrNoSnapshot = errors.New("store: no saved extraction")

func wrapOpenDB(err error) error {
	return fmt.Errorf("open db: %w", err)
}

// OpenDB opens (creating it if needed) the sqlite database at path and
// applies the schema.
func OpenDB(path string) (*sql.DB, error) {
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0777)
		if err != nil {
			return nil, wrapOpenDB(err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrapOpenDB(err)
	}

	// sqlite only allows a single writer
	db.SetMaxOpenConns(1)
	if path != ":memory:" {
		_, err = db.Exec("PRAGMA journal_mode=WAL")
		if err != nil {
			return nil, wrapOpenDB(err)
		}
	}
	_, err = db.Exec("PRAGMA foreign_keys=ON")
	if err != nil {
		return nil, wrapOpenDB(err)
	}
	_, err = db.Exec(Schema)
	if err != nil {
		return nil, wrapOpenDB(err)
	}

	return db, nil
}

// Snapshot is a saved extraction.
type Snapshot struct {
	ID        int64
	CreatedAt time.Time
	Result    registry.Result
}

type Store struct {
	db   *sql.DB
	time chrono.API
	tel  telemetry.API
}

func NewStore(db *sql.DB, time chrono.API, tel telemetry.API) Store {
	assert.NotNil(db)
	assert.NotNil(time)
	assert.NotNil(tel)
	return Store{
		db:   db,
		time: time,
		tel:  telemetry.NewScopedAPI("store", tel),
	}
}

func recordErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Save writes a pipeline result as a new extraction and returns its id,
// earlier extractions of the same category are kept.
func (s Store) Save(ctx context.Context, result registry.Result) (int64, error) {
	ctx, span := tracer.Start(ctx, "Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("category", string(result.Category)),
		attribute.Int("reports", len(result.Reports)),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, recordErr(span, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(
		ctx,
		"insert into extraction(category, created_at) values (?, ?)",
		string(result.Category), s.time.Now().Unix(),
	)
	if err != nil {
		return 0, recordErr(span, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, recordErr(span, err)
	}

	insertReport := func(report isa.ReportID, outcome, reason string) error {
		_, err := tx.ExecContext(
			ctx,
			"insert into report(extraction_id, label, code, outcome, reason) values (?, ?, ?, ?, ?)",
			id, report.Label, report.Code, outcome, reason,
		)
		return err
	}

	for label, report := range result.Reports {
		err = insertReport(report, OUTCOME_EXTRACTED, "")
		if err != nil {
			return 0, recordErr(span, err)
		}
		for i, student := range result.Tables[label] {
			_, err = tx.ExecContext(
				ctx,
				`insert into student(
					extraction_id, report_label, position,
					gender, name, specialization, minor, status, sciper
				) values (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				id, label, i,
				student.Gender, student.Name, student.Specialization,
				student.Minor, student.Status, student.Sciper,
			)
			if err != nil {
				return 0, recordErr(span, err)
			}
		}
	}
	for _, skipped := range result.Skipped {
		err = insertReport(isa.ReportID{Code: skipped.Code, Label: skipped.Label}, OUTCOME_SKIPPED, skipped.Reason)
		if err != nil {
			return 0, recordErr(span, err)
		}
	}
	for _, duplicate := range result.Duplicates {
		err = insertReport(duplicate, OUTCOME_DUPLICATE, "")
		if err != nil {
			return 0, recordErr(span, err)
		}
	}
	for _, dropped := range result.Dropped {
		err = insertReport(dropped, OUTCOME_DROPPED, "")
		if err != nil {
			return 0, recordErr(span, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		s.tel.ReportBroken(report_store_save, err, result.Category)
		return 0, recordErr(span, err)
	}
	return id, nil
}

// Latest loads the most recent extraction of a category.
func (s Store) Latest(ctx context.Context, category registry.Category) (Snapshot, error) {
	ctx, span := tracer.Start(ctx, "Latest")
	defer span.End()

	span.SetAttributes(attribute.String("category", string(category)))

	var id, createdAt int64
	err := s.db.QueryRowContext(
		ctx,
		"select id, created_at from extraction where category = ? order by created_at desc, id desc limit 1",
		string(category),
	).Scan(&id, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNoSnapshot, category)
	}
	if err != nil {
		return Snapshot{}, recordErr(span, err)
	}

	result, err := s.load(ctx, id, category)
	if err != nil {
		return Snapshot{}, recordErr(span, err)
	}
	return Snapshot{
		ID:        id,
		CreatedAt: time.Unix(createdAt, 0).In(s.time.Location()),
		Result:    result,
	}, nil
}

// load reads reports before students, each query is drained before the next
// one starts since the pool holds a single connection.
func (s Store) load(ctx context.Context, id int64, category registry.Category) (registry.Result, error) {
	result := registry.Result{
		Category: category,
		Reports:  map[string]isa.ReportID{},
		Tables:   isa.Tables{},
	}
	err := s.loadReports(ctx, id, &result)
	if err != nil {
		return registry.Result{}, err
	}
	err = s.loadStudents(ctx, id, result.Tables)
	if err != nil {
		return registry.Result{}, err
	}
	return result, nil
}

func (s Store) loadReports(ctx context.Context, id int64, result *registry.Result) error {
	rows, err := s.db.QueryContext(
		ctx,
		"select label, code, outcome, reason from report where extraction_id = ? order by rowid",
		id,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var report isa.ReportID
		var outcome, reason string
		err = rows.Scan(&report.Label, &report.Code, &outcome, &reason)
		if err != nil {
			return err
		}

		switch outcome {
		case OUTCOME_EXTRACTED:
			result.Reports[report.Label] = report
			// a report with no students still has a table
			result.Tables[report.Label] = []isa.StudentRecord{}
		case OUTCOME_SKIPPED:
			result.Skipped = append(result.Skipped, isa.LinkOutcome{
				Label:   report.Label,
				Code:    report.Code,
				Skipped: true,
				Reason:  reason,
			})
		case OUTCOME_DUPLICATE:
			result.Duplicates = append(result.Duplicates, report)
		case OUTCOME_DROPPED:
			result.Dropped = append(result.Dropped, report)
		default:
			return fmt.Errorf("unknown report outcome %q", outcome)
		}
	}
	return rows.Err()
}

func (s Store) loadStudents(ctx context.Context, id int64, tables isa.Tables) error {
	rows, err := s.db.QueryContext(
		ctx,
		`select report_label, gender, name, specialization, minor, status, sciper
		from student where extraction_id = ?
		order by report_label, position`,
		id,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var label string
		var student isa.StudentRecord
		err = rows.Scan(
			&label,
			&student.Gender, &student.Name, &student.Specialization,
			&student.Minor, &student.Status, &student.Sciper,
		)
		if err != nil {
			return err
		}
		tables[label] = append(tables[label], student)
	}
	return rows.Err()
}
