// Package postgres implements the occurrence store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/samber/mo"

	"github.com/djlord-it/easy-meetings/internal/domain"
)

//go:embed schema.sql
var schema string

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Store implements generator.Store using PostgreSQL.
type Store struct {
	db        *sql.DB
	opTimeout time.Duration
}

// New creates a store. A positive opTimeout bounds every operation.
func New(db *sql.DB, opTimeout time.Duration) *Store {
	return &Store{db: db, opTimeout: opTimeout}
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *Store) FindFutureOccurrence(ctx context.Context, seriesID domain.SeriesID, from time.Time, exclude []domain.OccurrenceStatus) (mo.Option[domain.Occurrence], error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	statuses := make([]string, len(exclude))
	for i, st := range exclude {
		statuses[i] = string(st)
	}

	row := s.db.QueryRowContext(ctx, queryFindFutureOccurrence,
		string(seriesID), domain.FormatDate(from), pq.Array(statuses))
	occ, err := scanOccurrence(row)
	if errors.Is(err, sql.ErrNoRows) {
		return mo.None[domain.Occurrence](), nil
	}
	if err != nil {
		return mo.None[domain.Occurrence](), err
	}
	return mo.Some(occ), nil
}

// CreateOccurrence inserts a new occurrence.
// Returns domain.ErrDuplicateOccurrence on a unique violation.
func (s *Store) CreateOccurrence(ctx context.Context, occ domain.Occurrence) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, queryInsertOccurrence,
		occ.ID,
		string(occ.SeriesID),
		occ.Title,
		domain.FormatDate(occ.Date),
		occ.StartTime.String(),
		occ.DurationMinutes,
		occ.RemoteID,
		occ.JoinURL,
		string(occ.Status),
		occ.Recurring,
		occ.CreatedAt,
		occ.UpdatedAt,
	)
	if isDuplicateKeyError(err) {
		return fmt.Errorf("%w: series %s on %s", domain.ErrDuplicateOccurrence, occ.SeriesID, domain.FormatDate(occ.Date))
	}
	return err
}

func (s *Store) GetOccurrence(ctx context.Context, id uuid.UUID) (domain.Occurrence, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	occ, err := scanOccurrence(s.db.QueryRowContext(ctx, queryGetOccurrence, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Occurrence{}, domain.ErrOccurrenceNotFound
	}
	return occ, err
}

func (s *Store) UpdateOccurrence(ctx context.Context, id uuid.UUID, upd domain.OccurrenceUpdate) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.db.ExecContext(ctx, queryUpdateOccurrence,
		id, domain.FormatDate(upd.Date), upd.StartTime.String(), upd.UpdatedAt)
	if isDuplicateKeyError(err) {
		return domain.ErrDuplicateOccurrence
	}
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (s *Store) DeleteOccurrence(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.db.ExecContext(ctx, queryDeleteOccurrence, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (s *Store) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]domain.Occurrence, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryListUpcoming, domain.FormatDate(from), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Occurrence
	for rows.Next() {
		occ, err := scanOccurrence(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, occ)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CompletePastOccurrences(ctx context.Context, before time.Time, now time.Time) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.db.ExecContext(ctx, queryCompletePastOccurrences, domain.FormatDate(before), now)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOccurrence(row scanner) (domain.Occurrence, error) {
	var (
		occ       domain.Occurrence
		seriesID  string
		date      time.Time
		startTime string
		status    string
	)
	err := row.Scan(
		&occ.ID,
		&seriesID,
		&occ.Title,
		&date,
		&startTime,
		&occ.DurationMinutes,
		&occ.RemoteID,
		&occ.JoinURL,
		&status,
		&occ.Recurring,
		&occ.CreatedAt,
		&occ.UpdatedAt,
	)
	if err != nil {
		return domain.Occurrence{}, err
	}

	tod, err := domain.ParseTimeOfDay(startTime)
	if err != nil {
		return domain.Occurrence{}, fmt.Errorf("occurrence %s: %w", occ.ID, err)
	}
	occ.SeriesID = domain.SeriesID(seriesID)
	occ.Date = domain.CivilDate(date)
	occ.StartTime = tod
	occ.Status = domain.OccurrenceStatus(status)
	return occ, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrOccurrenceNotFound
	}
	return nil
}

// isDuplicateKeyError checks if the error is a PostgreSQL unique violation.
func isDuplicateKeyError(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
