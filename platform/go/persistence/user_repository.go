package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/harmony-hq/harmony/platform/go/apperr"
)

const UsersTable = "users"

const userColumns = `user_id, user_name, email, password_hash, company_id, customers, workers, roles, active,
	created_by, updated_by, created_at, updated_at`

// User represents a row in the root users table.
type User struct {
	UserID       uuid.UUID `db:"user_id"`
	UserName     string    `db:"user_name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CompanyID    uuid.UUID `db:"company_id"`
	Customers    []string  `db:"customers"`
	Workers      []string  `db:"workers"`
	Roles        []string  `db:"roles"`
	Active       bool      `db:"active"`
	CreatedBy    string    `db:"created_by"`
	UpdatedBy    string    `db:"updated_by"`
	CreatedAt    string    `db:"created_at"`
	UpdatedAt    string    `db:"updated_at"`
}

var (
	// ErrUserNotFound indicates a missing user record.
	ErrUserNotFound = fmt.Errorf("user %w", apperr.ErrNotFound)
	// ErrUserConflict indicates a uniqueness violation (duplicated email).
	ErrUserConflict = fmt.Errorf("user email %w", apperr.ErrAlreadyExists)
)

// UserStore exposes persistence helpers for the users table. Users live in the root
// schema because login happens before any company is known.
type UserStore struct {
	db *CompanyDB
}

// NewUserStore returns a store bound to the root schema of db.
func NewUserStore(db *CompanyDB) (*UserStore, error) {
	if db == nil {
		return nil, errors.New("company db is required")
	}
	return &UserStore{db: db}, nil
}

// ListUsersParams captures filters and pagination for ListUsers.
type ListUsersParams struct {
	CompanyID *uuid.UUID
	Email     *string
	Page      int
	PageSize  int
	Sort      *string
}

// ListUsersResult includes the rows and the total count for pagination metadata.
type ListUsersResult struct {
	Users      []User
	TotalItems int
}

// CreateUser inserts a new user and returns the persisted record.
func (s *UserStore) CreateUser(ctx context.Context, user User) (User, error) {
	if user.UserID == uuid.Nil {
		return User{}, errors.New("user id is required")
	}

	var out User
	err := s.db.WithRoot(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = scanUser(tx.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (`+userColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        RETURNING `+userColumns, UsersTable),
			user.UserID, strings.TrimSpace(user.UserName), strings.ToLower(strings.TrimSpace(user.Email)),
			user.PasswordHash, user.CompanyID, nonNilStrings(user.Customers), nonNilStrings(user.Workers),
			nonNilStrings(user.Roles), user.Active, user.CreatedBy, user.UpdatedBy, user.CreatedAt, user.UpdatedAt))
		return err
	})
	if err != nil {
		return User{}, mapUserError("create user", err)
	}
	return out, nil
}

// ListUsers returns users matching the filters with pagination applied.
func (s *UserStore) ListUsers(ctx context.Context, params ListUsersParams) (ListUsersResult, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize <= 0 {
		params.PageSize = 20
	}
	if params.PageSize > 100 {
		params.PageSize = 100
	}

	whereParts := []string{"1=1"}
	var args []any

	if params.CompanyID != nil {
		args = append(args, *params.CompanyID)
		whereParts = append(whereParts, fmt.Sprintf("company_id = $%d", len(args)))
	}
	if params.Email != nil && strings.TrimSpace(*params.Email) != "" {
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(*params.Email))+"%")
		whereParts = append(whereParts, fmt.Sprintf("LOWER(email) LIKE $%d", len(args)))
	}
	whereSQL := strings.Join(whereParts, " AND ")

	orderSQL, err := buildUserOrderBy(params.Sort)
	if err != nil {
		return ListUsersResult{}, apperr.NewValidationError(map[string]string{"sort": err.Error()})
	}

	result := ListUsersResult{Users: []User{}}
	err = s.db.WithRoot(ctx, func(tx pgx.Tx) error {
		countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", UsersTable, whereSQL)
		if err := tx.QueryRow(ctx, countQuery, args...).Scan(&result.TotalItems); err != nil {
			return fmt.Errorf("count users: %w", err)
		}
		if result.TotalItems == 0 {
			return nil
		}

		dataArgs := append([]any{}, args...)
		dataArgs = append(dataArgs, params.PageSize, (params.Page-1)*params.PageSize)
		query := fmt.Sprintf(`
        SELECT `+userColumns+`
        FROM %s
        WHERE %s
        %s
        LIMIT $%d OFFSET $%d
    `, UsersTable, whereSQL, orderSQL, len(dataArgs)-1, len(dataArgs))

		rows, err := tx.Query(ctx, query, dataArgs...)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			user, scanErr := scanUser(rows)
			if scanErr != nil {
				return fmt.Errorf("scan user: %w", scanErr)
			}
			result.Users = append(result.Users, user)
		}
		return rows.Err()
	})
	if err != nil {
		return ListUsersResult{}, MapError("list users", err)
	}
	return result, nil
}

func buildUserOrderBy(sort *string) (string, error) {
	const defaultOrder = "ORDER BY user_name ASC"
	if sort == nil || strings.TrimSpace(*sort) == "" {
		return defaultOrder, nil
	}

	fields := strings.Split(strings.TrimSpace(*sort), ",")
	orderClauses := make([]string, 0, len(fields))
	mapping := map[string]string{
		"email":     "email",
		"userName":  "user_name",
		"createdAt": "created_at",
		"updatedAt": "updated_at",
	}

	for _, raw := range fields {
		f := strings.TrimSpace(raw)
		if f == "" {
			continue
		}

		direction := "ASC"
		if strings.HasPrefix(f, "-") {
			direction = "DESC"
			f = strings.TrimPrefix(f, "-")
		}

		column, ok := mapping[f]
		if !ok {
			return "", fmt.Errorf("unsupported sort field %q", f)
		}
		orderClauses = append(orderClauses, fmt.Sprintf("%s %s", column, direction))
	}

	if len(orderClauses) == 0 {
		return defaultOrder, nil
	}
	return "ORDER BY " + strings.Join(orderClauses, ", "), nil
}

// GetUser returns a single user by identifier.
func (s *UserStore) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	return s.one(ctx, "get user", fmt.Sprintf(`SELECT `+userColumns+` FROM %s WHERE user_id = $1`, UsersTable), id)
}

// GetUserByEmail looks a user up case-insensitively, as login does.
func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.one(ctx, "get user by email", fmt.Sprintf(`SELECT `+userColumns+` FROM %s WHERE LOWER(email) = LOWER($1)`, UsersTable),
		strings.TrimSpace(email))
}

// UpdateUser writes every mutable column of user.
func (s *UserStore) UpdateUser(ctx context.Context, user User) (User, error) {
	return s.one(ctx, "update user", fmt.Sprintf(`
        UPDATE %s
        SET user_name = $2, password_hash = $3, customers = $4, workers = $5, roles = $6, active = $7,
            updated_by = $8, updated_at = $9
        WHERE user_id = $1
        RETURNING `+userColumns, UsersTable),
		user.UserID, strings.TrimSpace(user.UserName), user.PasswordHash, nonNilStrings(user.Customers),
		nonNilStrings(user.Workers), nonNilStrings(user.Roles), user.Active, user.UpdatedBy, user.UpdatedAt)
}

// DeleteUser removes a user by identifier and returns the deleted row.
func (s *UserStore) DeleteUser(ctx context.Context, id uuid.UUID) (User, error) {
	if id == uuid.Nil {
		return User{}, ErrUserNotFound
	}
	return s.one(ctx, "delete user", fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 RETURNING `+userColumns, UsersTable), id)
}

func (s *UserStore) one(ctx context.Context, op, query string, args ...any) (User, error) {
	var out User
	err := s.db.WithRoot(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = scanUser(tx.QueryRow(ctx, query, args...))
		return err
	})
	if err != nil {
		return User{}, mapUserError(op, err)
	}
	return out, nil
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	if err := row.Scan(&user.UserID, &user.UserName, &user.Email, &user.PasswordHash, &user.CompanyID,
		&user.Customers, &user.Workers, &user.Roles, &user.Active,
		&user.CreatedBy, &user.UpdatedBy, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return User{}, err
	}
	return user, nil
}

func mapUserError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrUserNotFound
	case IsUniqueViolation(err):
		return ErrUserConflict
	default:
		return MapError(op, err)
	}
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
