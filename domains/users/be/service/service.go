package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/harmony-hq/harmony/domains/users/be/repo"
	"github.com/harmony-hq/harmony/platform/go/apperr"
	"github.com/harmony-hq/harmony/platform/go/auditstamp"
	platformauth "github.com/harmony-hq/harmony/platform/go/auth"
	"github.com/harmony-hq/harmony/platform/go/persistence"
	"github.com/harmony-hq/harmony/platform/go/requesttrace"
	"github.com/harmony-hq/harmony/platform/go/validation"
)

// Domain sentinel errors.
var (
	ErrNotFound           = persistence.ErrUserNotFound
	ErrConflict           = persistence.ErrUserConflict
	ErrInvalidCredentials = fmt.Errorf("invalid email or password: %w", apperr.ErrUnauthorized)
	ErrOtherCompany       = fmt.Errorf("user belongs to another company: %w", apperr.ErrUnauthorized)
	ErrRoleNotGrantable   = fmt.Errorf("role requires a super admin: %w", apperr.ErrUnauthorized)
)

// User represents the domain view of a user record. The password hash never leaves the service.
type User struct {
	ID        uuid.UUID `json:"id"`
	UserName  string    `json:"userName"`
	Email     string    `json:"email"`
	CompanyID uuid.UUID `json:"companyId"`
	Customers []string  `json:"customers"`
	Workers   []string  `json:"workers"`
	Roles     []string  `json:"roles"`
	Active    bool      `json:"active"`
	CreatedBy string    `json:"createdBy"`
	UpdatedBy string    `json:"updatedBy"`
	CreatedAt string    `json:"createdAt"`
	UpdatedAt string    `json:"updatedAt"`
}

// ListOptions controls filtering and pagination.
type ListOptions struct {
	Email    *string
	Page     int
	PageSize int
	Sort     *string
}

// ListResult wraps a page of users with pagination metadata.
type ListResult struct {
	Users      []User `json:"items"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
	TotalItems int    `json:"totalItems"`
	TotalPages int    `json:"totalPages"`
}

// CreateInput represents the payload required to create a new user.
// CompanyID is honored only for super admins; everyone else creates users in their own company.
type CreateInput struct {
	UserName  string     `json:"userName" validate:"required"`
	Email     string     `json:"email" validate:"required,email"`
	Password  string     `json:"password" validate:"required,min=8"`
	CompanyID *uuid.UUID `json:"companyId"`
	Customers []string   `json:"customers"`
	Workers   []string   `json:"workers"`
	Roles     []string   `json:"roles" validate:"required,min=1"`
}

// UpdateInput encapsulates fields that can be modified by administrators.
type UpdateInput struct {
	UserName  *string   `json:"userName" validate:"omitempty,min=1"`
	Password  *string   `json:"password" validate:"omitempty,min=8"`
	Customers *[]string `json:"customers"`
	Workers   *[]string `json:"workers"`
	Roles     *[]string `json:"roles" validate:"omitempty,min=1"`
	Active    *bool     `json:"active"`
}

// UpdateSelfInput encapsulates fields that the authenticated user can modify.
type UpdateSelfInput struct {
	UserName *string `json:"userName" validate:"omitempty,min=1"`
	Password *string `json:"password" validate:"omitempty,min=8"`
}

// LoginResult carries the signed token handed back to the client.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(creds platformauth.UserCredentials) (string, time.Time, error)
}

// Config wires the users service.
type Config struct {
	Repo      repo.Repository
	Tokens    TokenIssuer
	Clock     *auditstamp.Clock
	Validator *validation.Validator
	// HashCost defaults to bcrypt.DefaultCost.
	HashCost int
}

// Service implements login and user administration.
type Service struct {
	repo     repo.Repository
	tokens   TokenIssuer
	clock    *auditstamp.Clock
	validate *validation.Validator
	hashCost int
}

// New constructs a users Service instance backed by the provided repository.
func New(cfg Config) *Service {
	if cfg.Repo == nil {
		panic("users repository is required")
	}
	if cfg.Tokens == nil {
		panic("token issuer is required")
	}
	if cfg.Clock == nil || cfg.Validator == nil {
		panic("clock and validator are required")
	}
	cost := cfg.HashCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{repo: cfg.Repo, tokens: cfg.Tokens, clock: cfg.Clock, validate: cfg.Validator, hashCost: cost}
}

// Login checks the password and issues a token carrying the user's roles and tag scopes.
// Unknown, inactive, and wrong-password logins fail alike.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return LoginResult{}, apperr.NewValidationError(map[string]string{"credentials": "email and password are required"})
	}

	record, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if !record.Active {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(platformauth.UserCredentials{
		ID:        record.UserID.String(),
		UserName:  record.UserName,
		Email:     record.Email,
		CompanyID: record.CompanyID.String(),
		Roles:     record.Roles,
		Customers: record.Customers,
		Workers:   record.Workers,
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}
	return LoginResult{Token: token, ExpiresAt: expiresAt, User: mapUser(record)}, nil
}

// List returns the caller's company users. Super admins see every company.
func (s *Service) List(ctx context.Context, caller *platformauth.UserCredentials, opts ListOptions) (ListResult, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	sortValue, err := sanitizeSort(opts.Sort)
	if err != nil {
		return ListResult{}, err
	}

	params := persistence.ListUsersParams{Page: page, PageSize: pageSize, Sort: sortValue}
	if !caller.HasRole(platformauth.RoleSuperAdmin) {
		companyID, err := callerCompany(caller)
		if err != nil {
			return ListResult{}, err
		}
		params.CompanyID = &companyID
	}
	if opts.Email != nil && strings.TrimSpace(*opts.Email) != "" {
		email := strings.TrimSpace(*opts.Email)
		params.Email = &email
	}

	result, err := s.repo.List(ctx, params)
	if err != nil {
		return ListResult{}, err
	}

	users := make([]User, 0, len(result.Users))
	for _, record := range result.Users {
		users = append(users, mapUser(record))
	}

	totalPages := 0
	if result.TotalItems > 0 {
		totalPages = (result.TotalItems + pageSize - 1) / pageSize
	}

	return ListResult{Users: users, Page: page, PageSize: pageSize, TotalItems: result.TotalItems, TotalPages: totalPages}, nil
}

func (s *Service) Create(ctx context.Context, caller *platformauth.UserCredentials, audit requesttrace.AuditInfo, input CreateInput) (User, error) {
	if err := s.validate.Struct(input); err != nil {
		return User{}, err
	}
	if err := canGrant(caller, input.Roles); err != nil {
		return User{}, err
	}

	companyID, err := callerCompany(caller)
	if caller.HasRole(platformauth.RoleSuperAdmin) && input.CompanyID != nil {
		companyID, err = *input.CompanyID, nil
	}
	if err != nil {
		return User{}, err
	}

	hash, err := s.hash(input.Password)
	if err != nil {
		return User{}, err
	}

	actor, stamp := audit.ActorName(), s.clock.Stamp()
	record, err := s.repo.Create(ctx, persistence.User{
		UserID:       uuid.New(),
		UserName:     strings.TrimSpace(input.UserName),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash: hash,
		CompanyID:    companyID,
		Customers:    input.Customers,
		Workers:      input.Workers,
		Roles:        input.Roles,
		Active:       true,
		CreatedBy:    actor,
		UpdatedBy:    actor,
		CreatedAt:    stamp,
		UpdatedAt:    stamp,
	})
	if err != nil {
		return User{}, err
	}
	return mapUser(record), nil
}

func (s *Service) Get(ctx context.Context, caller *platformauth.UserCredentials, id uuid.UUID) (User, error) {
	record, err := s.load(ctx, caller, id)
	if err != nil {
		return User{}, err
	}
	return mapUser(record), nil
}

func (s *Service) Update(ctx context.Context, caller *platformauth.UserCredentials, audit requesttrace.AuditInfo, id uuid.UUID, input UpdateInput) (User, error) {
	if err := s.validate.Struct(input); err != nil {
		return User{}, err
	}
	if input.UserName == nil && input.Password == nil && input.Customers == nil && input.Workers == nil &&
		input.Roles == nil && input.Active == nil {
		return User{}, apperr.NewValidationError(map[string]string{"payload": "at least one field must be provided"})
	}

	record, err := s.load(ctx, caller, id)
	if err != nil {
		return User{}, err
	}
	if input.Roles != nil {
		if err := canGrant(caller, *input.Roles); err != nil {
			return User{}, err
		}
		record.Roles = *input.Roles
	}
	if err := s.applySelf(&record, UpdateSelfInput{UserName: input.UserName, Password: input.Password}); err != nil {
		return User{}, err
	}
	if input.Customers != nil {
		record.Customers = *input.Customers
	}
	if input.Workers != nil {
		record.Workers = *input.Workers
	}
	if input.Active != nil {
		record.Active = *input.Active
	}
	return s.save(ctx, audit, record)
}

// UpdateSelf lets any authenticated user change their own name or password.
func (s *Service) UpdateSelf(ctx context.Context, caller *platformauth.UserCredentials, audit requesttrace.AuditInfo, input UpdateSelfInput) (User, error) {
	if err := s.validate.Struct(input); err != nil {
		return User{}, err
	}
	if input.UserName == nil && input.Password == nil {
		return User{}, apperr.NewValidationError(map[string]string{"payload": "at least one field must be provided"})
	}
	if caller == nil {
		return User{}, fmt.Errorf("missing credentials: %w", apperr.ErrUnauthorized)
	}
	id, err := uuid.Parse(caller.ID)
	if err != nil {
		return User{}, ErrNotFound
	}

	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err := s.applySelf(&record, input); err != nil {
		return User{}, err
	}
	return s.save(ctx, audit, record)
}

func (s *Service) Delete(ctx context.Context, caller *platformauth.UserCredentials, id uuid.UUID) (User, error) {
	if _, err := s.load(ctx, caller, id); err != nil {
		return User{}, err
	}
	record, err := s.repo.Delete(ctx, id)
	if err != nil {
		return User{}, err
	}
	return mapUser(record), nil
}

// load fetches id and enforces the same-company rule.
func (s *Service) load(ctx context.Context, caller *platformauth.UserCredentials, id uuid.UUID) (persistence.User, error) {
	if id == uuid.Nil {
		return persistence.User{}, ErrNotFound
	}
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return persistence.User{}, err
	}
	if caller.HasRole(platformauth.RoleSuperAdmin) {
		return record, nil
	}
	companyID, err := callerCompany(caller)
	if err != nil {
		return persistence.User{}, err
	}
	if record.CompanyID != companyID {
		return persistence.User{}, ErrOtherCompany
	}
	return record, nil
}

func (s *Service) applySelf(record *persistence.User, input UpdateSelfInput) error {
	if input.UserName != nil {
		name := strings.TrimSpace(*input.UserName)
		if name == "" {
			return apperr.NewValidationError(map[string]string{"userName": "cannot be empty"})
		}
		record.UserName = name
	}
	if input.Password != nil {
		hash, err := s.hash(*input.Password)
		if err != nil {
			return err
		}
		record.PasswordHash = hash
	}
	return nil
}

func (s *Service) save(ctx context.Context, audit requesttrace.AuditInfo, record persistence.User) (User, error) {
	record.UpdatedBy = audit.ActorName()
	record.UpdatedAt = s.clock.Stamp()
	updated, err := s.repo.Update(ctx, record)
	if err != nil {
		return User{}, err
	}
	return mapUser(updated), nil
}

func (s *Service) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", apperr.NewValidationError(map[string]string{"password": "must be at most 72 bytes"})
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func callerCompany(caller *platformauth.UserCredentials) (uuid.UUID, error) {
	if caller == nil {
		return uuid.Nil, fmt.Errorf("missing credentials: %w", apperr.ErrUnauthorized)
	}
	id, err := uuid.Parse(caller.CompanyID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("caller has no company: %w", apperr.ErrUnauthorized)
	}
	return id, nil
}

func canGrant(caller *platformauth.UserCredentials, roles []string) error {
	if slices.Contains(roles, platformauth.RoleSuperAdmin) && !caller.HasRole(platformauth.RoleSuperAdmin) {
		return ErrRoleNotGrantable
	}
	return nil
}

func sanitizeSort(sort *string) (*string, error) {
	if sort == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*sort)
	if trimmed == "" {
		return nil, nil
	}

	allowed := map[string]struct{}{
		"email":     {},
		"userName":  {},
		"createdAt": {},
		"updatedAt": {},
	}

	for _, raw := range strings.Split(trimmed, ",") {
		field := strings.TrimPrefix(strings.TrimSpace(raw), "-")
		if field == "" {
			continue
		}
		if _, ok := allowed[field]; !ok {
			return nil, apperr.NewValidationError(map[string]string{"sort": fmt.Sprintf("unsupported sort field %q", field)})
		}
	}

	return &trimmed, nil
}

func mapUser(record persistence.User) User {
	return User{
		ID:        record.UserID,
		UserName:  record.UserName,
		Email:     record.Email,
		CompanyID: record.CompanyID,
		Customers: nonNil(record.Customers),
		Workers:   nonNil(record.Workers),
		Roles:     nonNil(record.Roles),
		Active:    record.Active,
		CreatedBy: record.CreatedBy,
		UpdatedBy: record.UpdatedBy,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
