package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"onboarding/internal/domain/auth"
)

const userColumns = `id::text, name, email, employee_id, password_hash, role, is_active, phone,
       emergency_contact, address, manager_id, position, department, employment_type,
       start_date, status, created_at, updated_at, last_login`

type PostgresStore struct {
	DB *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{DB: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	var role string
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.EmployeeID, &u.PasswordHash, &role, &u.IsActive, &u.Phone,
		&u.EmergencyContact, &u.Address, &u.ManagerID, &u.Position, &u.Department, &u.EmploymentType,
		&u.StartDate, &u.Status, &u.CreatedAt, &u.UpdatedAt, &u.LastLogin,
	)
	if err != nil {
		return User{}, err
	}
	u.Role = auth.ParseRole(role)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

func (s *PostgresStore) Insert(ctx context.Context, user User) (string, error) {
	id := uuid.NewString()
	_, err := s.DB.Exec(ctx, `
    INSERT INTO users (id, name, email, employee_id, password_hash, role, is_active, phone,
                       emergency_contact, address, manager_id, position, department, employment_type,
                       start_date, status, created_at, updated_at, last_login)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
  `, id, user.Name, user.Email, user.EmployeeID, user.PasswordHash, string(user.Role), user.IsActive, user.Phone,
		user.EmergencyContact, user.Address, user.ManagerID, user.Position, user.Department, user.EmploymentType,
		user.StartDate, user.Status, user.CreatedAt, user.UpdatedAt, user.LastLogin)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrDuplicateEmail
		}
		return "", fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) List(ctx context.Context, skip, limit int) ([]User, error) {
	return s.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id LIMIT $1 OFFSET $2`, limit, skip)
}

func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]User, error) {
	return s.query(ctx, `SELECT `+userColumns+` FROM users WHERE is_active ORDER BY name, id`)
}

func (s *PostgresStore) query(ctx context.Context, sql string, args ...any) ([]User, error) {
	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, ErrInvalidID
	}
	return s.one(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.one(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (s *PostgresStore) one(ctx context.Context, sql string, arg string) (User, error) {
	u, err := scanUser(s.DB.QueryRow(ctx, sql, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) Apply(ctx context.Context, id string, patch Patch) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	sets := []string{"updated_at = $1"}
	args := []any{patch.UpdatedAt}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}
	if patch.Role != nil {
		add("role", string(*patch.Role))
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}
	profileFields(patch.Profile, func(field, value string) {
		add(field, value)
	})
	args = append(args, id)

	tag, err := s.DB.Exec(ctx, "UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id = $"+strconv.Itoa(len(args)), args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	if _, err := s.DB.Exec(ctx, "UPDATE users SET last_login = $1 WHERE id = $2", at, id); err != nil {
		return fmt.Errorf("touch last_login: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.DB.Ping(ctx)
}
