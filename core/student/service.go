package student

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/mahudhurio/core"
)

var (
	// errors
	ErrNotFound = errors.New("student not found")
	// ErrAmbiguousIdentity signals a roster integrity fault: the same identifier
	// maps to more than one student. It is never resolved silently.
	ErrAmbiguousIdentity = errors.New("identifier matches more than one student")
	ErrNISExists         = errors.New("a student with this NIS already exists")
)

type (
	Repository interface {
		CreateStudent(ctx context.Context, std Student) (Student, error)
		QueryAllStudents(ctx context.Context) ([]Student, error)
		CountStudents(ctx context.Context) (int, error)
		GetStudentByID(ctx context.Context, id string) (Student, error)
		// FindStudentsByIdentifier does an exact match of ident against NIS or NISN.
		FindStudentsByIdentifier(ctx context.Context, ident string) ([]Student, error)
	}

	Service interface {
		Create(ctx context.Context, ns NewStudent) (Student, error)
		QueryAll(ctx context.Context) ([]Student, error)
		Count(ctx context.Context) (int, error)
		GetByID(ctx context.Context, id string) (Student, error)
		Resolve(ctx context.Context, rawToken string) (Student, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	if err := ns.Validate(); err != nil {
		return Student{}, err
	}

	// NIS is the primary scan identifier; refuse duplicates up front.
	if existing, err := svc.repo.FindStudentsByIdentifier(ctx, ns.NIS); err != nil {
		return Student{}, err
	} else if len(existing) > 0 {
		return Student{}, core.NewValidationError(ErrNISExists, core.FieldError{Field: "nis", Error: ErrNISExists.Error()})
	}

	now := time.Now().UTC()
	std := Student{
		ID:         uuid.New().String(),
		NIS:        ns.NIS,
		NISN:       ns.NISN,
		Name:       ns.Name,
		ClassLabel: ns.ClassLabel,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return svc.repo.CreateStudent(ctx, std)
}

func (svc *service) QueryAll(ctx context.Context) ([]Student, error) {
	return svc.repo.QueryAllStudents(ctx)
}

func (svc *service) Count(ctx context.Context) (int, error) {
	return svc.repo.CountStudents(ctx)
}

func (svc *service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudentByID(ctx, id)
}

// Resolve maps a raw scan or form token to exactly one roster Student.
// Resolution is always an exact identifier match; name/substring matching is a
// UI convenience and has no place on the write path.
func (svc *service) Resolve(ctx context.Context, rawToken string) (Student, error) {
	token := core.CleanString(rawToken)
	if token == "" {
		return Student{}, ErrNotFound
	}

	matches, err := svc.repo.FindStudentsByIdentifier(ctx, token)
	if err != nil {
		return Student{}, err
	}
	switch len(matches) {
	case 0:
		return Student{}, ErrNotFound
	case 1:
		return matches[0], nil
	default:
		return Student{}, ErrAmbiguousIdentity
	}
}
