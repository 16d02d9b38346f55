package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/mess-attendance-api/internal/models"
	appErrors "github.com/noah-isme/mess-attendance-api/pkg/errors"
)

type studentRepoStub struct {
	students map[string]models.Student
	deleted  []string
}

func newStudentRepoStub() *studentRepoStub {
	return &studentRepoStub{students: map[string]models.Student{}}
}

func (r *studentRepoStub) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	all := make([]models.Student, 0, len(r.students))
	for _, student := range r.students {
		all = append(all, student)
	}
	return all, len(all), nil
}

func (r *studentRepoStub) FindByUniqueID(ctx context.Context, uniqueID string) (*models.Student, error) {
	student, ok := r.students[uniqueID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &student, nil
}

func (r *studentRepoStub) ExistsByUniqueID(ctx context.Context, uniqueID string) (bool, error) {
	_, ok := r.students[uniqueID]
	return ok, nil
}

func (r *studentRepoStub) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	r.students[student.UniqueID] = *student
	return nil
}

func (r *studentRepoStub) Update(ctx context.Context, student *models.Student) error {
	if _, ok := r.students[student.UniqueID]; !ok {
		return sql.ErrNoRows
	}
	r.students[student.UniqueID] = *student
	return nil
}

func (r *studentRepoStub) Delete(ctx context.Context, uniqueID string) error {
	delete(r.students, uniqueID)
	r.deleted = append(r.deleted, uniqueID)
	return nil
}

func newRosterServiceForTest(t *testing.T) (*RosterService, *studentRepoStub) {
	t.Helper()
	repo := newStudentRepoStub()
	return NewRosterService(repo, nil, zap.NewNop()), repo
}

func TestRosterServiceRegister(t *testing.T) {
	svc, repo := newRosterServiceForTest(t)

	student, err := svc.Register(context.Background(), RegisterStudentRequest{
		UniqueID: "badge-1",
		Name:     "Anita Rao",
		RollNo:   "21CS001",
		Semester: "4",
		FeePaid:  "Yes",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, student.ID)
	assert.Contains(t, repo.students, "badge-1")
}

func TestRosterServiceRegisterDuplicateBadge(t *testing.T) {
	svc, repo := newRosterServiceForTest(t)
	repo.students["badge-1"] = models.Student{UniqueID: "badge-1", FullName: "Anita Rao", RollNo: "21CS001"}

	_, err := svc.Register(context.Background(), RegisterStudentRequest{
		UniqueID: "badge-1",
		Name:     "Someone Else",
		RollNo:   "21CS099",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRosterServiceRegisterValidation(t *testing.T) {
	svc, _ := newRosterServiceForTest(t)

	_, err := svc.Register(context.Background(), RegisterStudentRequest{UniqueID: "badge-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRosterServiceUpdateKeepsBadgeImmutable(t *testing.T) {
	svc, repo := newRosterServiceForTest(t)
	repo.students["badge-1"] = models.Student{ID: "id-1", UniqueID: "badge-1", FullName: "Anita Rao", RollNo: "21CS001", Semester: "4"}

	updated, err := svc.Update(context.Background(), "badge-1", UpdateStudentRequest{
		Name:     "Anita R Rao",
		RollNo:   "21CS001",
		Semester: "5",
		FeePaid:  "Yes",
	})
	require.NoError(t, err)
	assert.Equal(t, "badge-1", updated.UniqueID)
	assert.Equal(t, "Anita R Rao", updated.FullName)
	assert.Equal(t, "5", updated.Semester)
}

func TestRosterServiceUpdateNotFound(t *testing.T) {
	svc, _ := newRosterServiceForTest(t)

	_, err := svc.Update(context.Background(), "badge-missing", UpdateStudentRequest{Name: "x", RollNo: "y"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRosterServiceUnregister(t *testing.T) {
	svc, repo := newRosterServiceForTest(t)
	repo.students["badge-1"] = models.Student{UniqueID: "badge-1"}

	require.NoError(t, svc.Unregister(context.Background(), "badge-1"))
	assert.Equal(t, []string{"badge-1"}, repo.deleted)

	err := svc.Unregister(context.Background(), "badge-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
