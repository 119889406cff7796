package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/harmony-hq/harmony/platform/go/apperr"
	"github.com/harmony-hq/harmony/platform/go/persistence"
	"github.com/harmony-hq/harmony/platform/go/requesttrace"
)

// definition is implemented by every sub-resource stored inside the company record.
type definition[T any] interface {
	key() string
	withKey(id string) T
}

func (f Field) key() string { return f.ID }

func (f Field) withKey(id string) Field {
	f.ID = id
	return f
}

func (p Position) key() string { return p.ID }

func (p Position) withKey(id string) Position {
	p.ID = id
	return p
}

func (c Convention) key() string { return c.ID }

func (c Convention) withKey(id string) Convention {
	c.ID = id
	return c
}

func (s Sequence) key() string { return s.ID }

func (s Sequence) withKey(id string) Sequence {
	s.ID = id
	return s
}

func (t Tag) key() string { return t.ID }

func (t Tag) withKey(id string) Tag {
	t.ID = id
	return t
}

func fieldList(scope FieldScope) func(*Company) *[]Field {
	return func(c *Company) *[]Field {
		if scope == ScopeCustomer {
			return &c.CustomerFields
		}
		return &c.WorkerFields
	}
}

func positionList(c *Company) *[]Position { return &c.Positions }

func conventionList(c *Company) *[]Convention { return &c.Conventions }

func sequenceList(c *Company) *[]Sequence { return &c.Sequences }

func tagList(c *Company) *[]Tag { return &c.Tags }

// AddField appends a custom field definition.
func (s *Service) AddField(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, scope FieldScope, f Field) (Field, error) {
	if err := validScope(scope); err != nil {
		return Field{}, err
	}
	if err := s.checkField(f); err != nil {
		return Field{}, err
	}
	return addDefinition(s, ctx, audit, companyID, fieldList(scope), f)
}

// UpdateField replaces a custom field definition by id.
func (s *Service) UpdateField(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, scope FieldScope, f Field) (Field, error) {
	if err := validScope(scope); err != nil {
		return Field{}, err
	}
	if err := s.checkField(f); err != nil {
		return Field{}, err
	}
	return updateDefinition(s, ctx, audit, companyID, fieldList(scope), f)
}

// DeleteField removes a custom field definition by id.
func (s *Service) DeleteField(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, scope FieldScope, id string) (Field, error) {
	if err := validScope(scope); err != nil {
		return Field{}, err
	}
	return deleteDefinition(s, ctx, audit, companyID, fieldList(scope), id)
}

func (s *Service) AddPosition(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, p Position) (Position, error) {
	if err := s.validate.Struct(p); err != nil {
		return Position{}, err
	}
	return addDefinition(s, ctx, audit, companyID, positionList, p)
}

func (s *Service) UpdatePosition(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, p Position) (Position, error) {
	if err := s.validate.Struct(p); err != nil {
		return Position{}, err
	}
	return updateDefinition(s, ctx, audit, companyID, positionList, p)
}

func (s *Service) DeletePosition(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, id string) (Position, error) {
	return deleteDefinition(s, ctx, audit, companyID, positionList, id)
}

func (s *Service) AddConvention(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, c Convention) (Convention, error) {
	if err := s.validate.Struct(c); err != nil {
		return Convention{}, err
	}
	return addDefinition(s, ctx, audit, companyID, conventionList, c)
}

func (s *Service) UpdateConvention(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, c Convention) (Convention, error) {
	if err := s.validate.Struct(c); err != nil {
		return Convention{}, err
	}
	return updateDefinition(s, ctx, audit, companyID, conventionList, c)
}

func (s *Service) DeleteConvention(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, id string) (Convention, error) {
	return deleteDefinition(s, ctx, audit, companyID, conventionList, id)
}

// AddSequence stores a rotation pattern. Updating it later never rewrites materialized shifts.
func (s *Service) AddSequence(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, seq Sequence) (Sequence, error) {
	if err := s.checkSequence(ctx, seq); err != nil {
		return Sequence{}, err
	}
	return addDefinition(s, ctx, audit, companyID, sequenceList, seq)
}

func (s *Service) UpdateSequence(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, seq Sequence) (Sequence, error) {
	if err := s.checkSequence(ctx, seq); err != nil {
		return Sequence{}, err
	}
	return updateDefinition(s, ctx, audit, companyID, sequenceList, seq)
}

func (s *Service) DeleteSequence(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, id string) (Sequence, error) {
	return deleteDefinition(s, ctx, audit, companyID, sequenceList, id)
}

func (s *Service) AddTag(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, t Tag) (Tag, error) {
	if err := s.validate.Struct(t); err != nil {
		return Tag{}, err
	}
	return addDefinition(s, ctx, audit, companyID, tagList, t)
}

func (s *Service) UpdateTag(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, t Tag) (Tag, error) {
	if err := s.validate.Struct(t); err != nil {
		return Tag{}, err
	}
	return updateDefinition(s, ctx, audit, companyID, tagList, t)
}

func (s *Service) DeleteTag(ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, id string) (Tag, error) {
	return deleteDefinition(s, ctx, audit, companyID, tagList, id)
}

func (s *Service) checkField(f Field) error {
	if err := s.validate.Struct(f); err != nil {
		return err
	}
	if f.Type == FieldSelect && len(f.Options) == 0 {
		return apperr.NewValidationError(map[string]string{"options": "are required for select fields"})
	}
	return nil
}

func (s *Service) checkSequence(ctx context.Context, seq Sequence) error {
	if err := s.validate.Struct(seq); err != nil {
		return err
	}
	fields := apperr.FieldErrors{}
	for i, step := range seq.Steps {
		if err := s.documents.Validate(ctx, persistence.DocumentStep, step); err != nil {
			if ve, ok := err.(*apperr.ValidationError); ok {
				for field, messages := range ve.Fields {
					for _, msg := range messages {
						fields.Add(stepPath(i, field), msg)
					}
				}
				continue
			}
			return err
		}
	}
	if len(fields) > 0 {
		return &apperr.ValidationError{Fields: fields}
	}
	return nil
}

func addDefinition[T definition[T]](s *Service, ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, list func(*Company) *[]T, item T) (T, error) {
	item = item.withKey(uuid.NewString())
	_, err := s.mutate(ctx, audit, companyID, func(c *Company) error {
		items := list(c)
		*items = append(*items, item)
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return item, nil
}

func updateDefinition[T definition[T]](s *Service, ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, list func(*Company) *[]T, item T) (T, error) {
	if strings.TrimSpace(item.key()) == "" {
		var zero T
		return zero, apperr.NewValidationError(map[string]string{"id": "is required"})
	}
	_, err := s.mutate(ctx, audit, companyID, func(c *Company) error {
		items := list(c)
		i := slices.IndexFunc(*items, func(existing T) bool { return existing.key() == item.key() })
		if i < 0 {
			return ErrDefinitionNotFound
		}
		(*items)[i] = item
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return item, nil
}

func deleteDefinition[T definition[T]](s *Service, ctx context.Context, audit requesttrace.AuditInfo, companyID uuid.UUID, list func(*Company) *[]T, id string) (T, error) {
	var removed T
	_, err := s.mutate(ctx, audit, companyID, func(c *Company) error {
		items := list(c)
		i := slices.IndexFunc(*items, func(existing T) bool { return existing.key() == id })
		if i < 0 {
			return ErrDefinitionNotFound
		}
		removed = (*items)[i]
		*items = slices.Delete(*items, i, i+1)
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return removed, nil
}

func validScope(scope FieldScope) error {
	if scope != ScopeWorker && scope != ScopeCustomer {
		return apperr.NewValidationError(map[string]string{"scope": "must be worker or customer"})
	}
	return nil
}

func stepPath(i int, pointer string) string {
	base := fmt.Sprintf("steps[%d]", i)
	pointer = strings.Trim(pointer, "/")
	if pointer == "" {
		return base
	}
	return base + "." + strings.ReplaceAll(pointer, "/", ".")
}
