package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"careflow/internal/patient"
	"careflow/pkg/sentinel"
)

// Postgres persists patients in PostgreSQL. Date fields cross the boundary
// as YYYY-MM-DD strings and are stored as DATE columns.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, p patient.Patient) error {
	query := `
		INSERT INTO patients (id, name, email, address, date_of_birth, registered_date)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Email, p.Address, p.DateOfBirth, p.RegisteredDate)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create patient: %w", err)
	}
	return nil
}

func (s *Postgres) Update(ctx context.Context, p patient.Patient) error {
	query := `
		UPDATE patients
		SET name = $2, email = $3, address = $4, date_of_birth = $5
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Email, p.Address, p.DateOfBirth)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update patient: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update patient rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, id uuid.UUID) (patient.Patient, error) {
	query := `
		SELECT id, name, email, address, date_of_birth, registered_date
		FROM patients WHERE id = $1
	`
	p, err := scanPatient(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return patient.Patient{}, sentinel.ErrNotFound
		}
		return patient.Patient{}, fmt.Errorf("get patient: %w", err)
	}
	return p, nil
}

func (s *Postgres) List(ctx context.Context) ([]patient.Patient, error) {
	query := `
		SELECT id, name, email, address, date_of_birth, registered_date
		FROM patients ORDER BY name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var patients []patient.Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patients: %w", err)
	}
	return patients, nil
}

func (s *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete patient rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatient(row rowScanner) (patient.Patient, error) {
	var (
		p              patient.Patient
		dateOfBirth    time.Time
		registeredDate time.Time
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Address, &dateOfBirth, &registeredDate); err != nil {
		return patient.Patient{}, err
	}
	p.DateOfBirth = dateOfBirth.Format(patient.DateLayout)
	p.RegisteredDate = registeredDate.Format(patient.DateLayout)
	return p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
