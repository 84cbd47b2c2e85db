package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-archive-api/internal/models"
)

// StudentRepository reads student identities. Students are never written by this service.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// ListByPeriod returns each student that has at least one mark in the period, once.
func (r *StudentRepository) ListByPeriod(ctx context.Context, period models.Period) ([]models.Student, error) {
	query := r.db.Rebind(`SELECT s.id, s.student_number, s.full_name, s.class_name, s.gender
	FROM students s
	WHERE EXISTS (
		SELECT 1 FROM marks m
		WHERE m.student_id = s.id AND m.term = ? AND m.academic_year = ?
	)
	ORDER BY s.full_name, s.id`)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, period.Term, period.AcademicYear); err != nil {
		return nil, fmt.Errorf("list students by period: %w", err)
	}
	return students, nil
}
