package roster

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresStore reads student records from Postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a roster store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const studentColumns = `learner_reference_number, rfid_tag, first_name, last_name, grade_level, school_year, guardian_contact_number, parent_email`

// ResolveByTag looks up the student currently assigned the given tag.
func (s *PostgresStore) ResolveByTag(ctx context.Context, tag string) (*StudentIdentity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+studentColumns+`
		FROM students WHERE rfid_tag = $1
	`, tag)
	return scanStudent(row)
}

// GetByLRN fetches a student by learner reference number.
func (s *PostgresStore) GetByLRN(ctx context.Context, lrn string) (*StudentIdentity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+studentColumns+`
		FROM students WHERE learner_reference_number = $1
	`, lrn)
	return scanStudent(row)
}

func scanStudent(row *sql.Row) (*StudentIdentity, error) {
	var st StudentIdentity
	err := row.Scan(&st.LRN, &st.RFIDTag, &st.FirstName, &st.LastName, &st.GradeLevel, &st.SchoolYear, &st.GuardianContact, &st.ParentEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}
