package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"banquet_crm/internal/domain/employee"

	"github.com/lib/pq"
)

type PostgresEmployeeRepository struct {
	db *sql.DB
}

func NewPostgresEmployeeRepository(db *sql.DB) *PostgresEmployeeRepository {
	return &PostgresEmployeeRepository{db: db}
}

// ListByRoles returns active employees in directory order (oldest first).
func (r *PostgresEmployeeRepository) ListByRoles(ctx context.Context, roles []employee.Role) ([]*employee.Employee, error) {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	query := `SELECT id, name, role, phone, is_active, created_at
	          FROM employees
	          WHERE is_active = TRUE AND role = ANY($1)
	          ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("error listing employees by role: %w", err)
	}
	defer rows.Close()

	var employees []*employee.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning employee row: %w", err)
		}
		employees = append(employees, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating employee rows: %w", err)
	}
	return employees, nil
}

// GetByName matches the display name case-insensitively, which is how leads reference owners.
func (r *PostgresEmployeeRepository) GetByName(ctx context.Context, name string) (*employee.Employee, error) {
	query := `SELECT id, name, role, phone, is_active, created_at
	          FROM employees WHERE LOWER(name) = LOWER($1) LIMIT 1`
	e, err := scanEmployee(r.db.QueryRowContext(ctx, query, strings.TrimSpace(name)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("error getting employee by name: %w", err)
	}
	return e, nil
}

func scanEmployee(row rowScanner) (*employee.Employee, error) {
	var (
		e    employee.Employee
		role string
	)
	if err := row.Scan(&e.ID, &e.Name, &role, &e.Phone, &e.IsActive, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Role = employee.Role(role)
	return &e, nil
}
