package student

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/mahudhurio/core"
)

type fakeRepo struct {
	students []Student
}

var _ Repository = (*fakeRepo)(nil)

func (repo *fakeRepo) CreateStudent(ctx context.Context, std Student) (Student, error) {
	repo.students = append(repo.students, std)
	return std, nil
}

func (repo *fakeRepo) QueryAllStudents(ctx context.Context) ([]Student, error) {
	return repo.students, nil
}

func (repo *fakeRepo) CountStudents(ctx context.Context) (int, error) {
	return len(repo.students), nil
}

func (repo *fakeRepo) GetStudentByID(ctx context.Context, id string) (Student, error) {
	for _, std := range repo.students {
		if std.ID == id {
			return std, nil
		}
	}
	return Student{}, ErrNotFound
}

func (repo *fakeRepo) FindStudentsByIdentifier(ctx context.Context, ident string) ([]Student, error) {
	var matches []Student
	for _, std := range repo.students {
		if std.NIS == ident || (std.NISN != "" && std.NISN == ident) {
			matches = append(matches, std)
		}
	}
	return matches, nil
}

func setup(t *testing.T) (Service, *fakeRepo) {
	t.Helper()
	repo := new(fakeRepo)
	return NewService(repo), repo
}

func Test_service_Resolve(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	amina := Student{ID: "sid-1", NIS: "1001", NISN: "0012345678", Name: "Amina"}
	baraka := Student{ID: "sid-2", NIS: "1002", NISN: "0055555555", Name: "Baraka"}
	// roster fault: chiku's NIS collides with amina's NISN
	chiku := Student{ID: "sid-3", NIS: "0012345678", Name: "Chiku"}
	repo.students = []Student{amina, baraka, chiku}

	tests := []struct {
		name    string
		token   string
		want    Student
		wantErr error
	}{
		{name: "NIS match", token: "1001", want: amina},
		{name: "another NIS match", token: "1002", want: baraka},
		{name: "NISN match", token: "0055555555", want: baraka},
		{name: "surrounding whitespace is trimmed", token: "  1001\n", want: amina},
		{name: "unknown token", token: "X999", wantErr: ErrNotFound},
		{name: "empty token", token: "   ", wantErr: ErrNotFound},
		{name: "substring never matches", token: "100", wantErr: ErrNotFound},
		{name: "ambiguous identifier", token: "0012345678", wantErr: ErrAmbiguousIdentity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			std, err := svc.Resolve(ctx, tt.token)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, std)
		})
	}
}

func Test_service_Create(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	std, err := svc.Create(ctx, NewStudent{NIS: " 2001 ", NISN: "0087654321", Name: "Dalila", ClassLabel: "XI IPA 2"})
	assert.NoError(t, err)
	assert.NotEmpty(t, std.ID)
	assert.Equal(t, "2001", std.NIS) // cleaned
	assert.Len(t, repo.students, 1)

	t.Run("duplicate NIS is refused", func(t *testing.T) {
		_, err := svc.Create(ctx, NewStudent{NIS: "2001", Name: "Imposter"})
		_, isValidationErr := err.(*core.ValidationError)
		assert.True(t, isValidationErr)
		assert.Len(t, repo.students, 1)
	})

	t.Run("missing required fields", func(t *testing.T) {
		_, err := svc.Create(ctx, NewStudent{NISN: "0011223344"})
		assert.Error(t, err)
	})

	t.Run("non-numeric NIS", func(t *testing.T) {
		_, err := svc.Create(ctx, NewStudent{NIS: "20x1", Name: "Eddy"})
		assert.Error(t, err)
	})

	t.Run("short NISN", func(t *testing.T) {
		_, err := svc.Create(ctx, NewStudent{NIS: "2002", NISN: "12345", Name: "Eddy"})
		assert.Error(t, err)
	})
}
