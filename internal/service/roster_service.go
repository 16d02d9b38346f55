package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/mess-attendance-api/internal/models"
	appErrors "github.com/noah-isme/mess-attendance-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByUniqueID(ctx context.Context, uniqueID string) (*models.Student, error)
	ExistsByUniqueID(ctx context.Context, uniqueID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, uniqueID string) error
}

// RegisterStudentRequest holds payload for registering students.
type RegisterStudentRequest struct {
	UniqueID string `json:"uniqueId" validate:"required"`
	Name     string `json:"name" validate:"required"`
	RollNo   string `json:"rollNo" validate:"required"`
	Branch   string `json:"branch"`
	Semester string `json:"semester"`
	PhoneNo  string `json:"phoneNo"`
	FeePaid  string `json:"feePaid"`
}

// UpdateStudentRequest holds payload for updating students.
type UpdateStudentRequest struct {
	Name     string `json:"name" validate:"required"`
	RollNo   string `json:"rollNo" validate:"required"`
	Branch   string `json:"branch"`
	Semester string `json:"semester"`
	PhoneNo  string `json:"phoneNo"`
	FeePaid  string `json:"feePaid"`
}

// RosterService handles registry use-cases.
type RosterService struct {
	repo      studentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRosterService constructs the roster service.
func NewRosterService(repo studentRepository, validate *validator.Validate, logger *zap.Logger) *RosterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{repo: repo, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *RosterService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return students, pagination, nil
}

// Get returns the student registered with the given badge code.
func (s *RosterService) Get(ctx context.Context, uniqueID string) (*models.Student, error) {
	student, err := s.repo.FindByUniqueID(ctx, uniqueID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Register adds a new student to the roster.
func (s *RosterService) Register(ctx context.Context, req RegisterStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	exists, err := s.repo.ExistsByUniqueID(ctx, req.UniqueID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate unique id")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "unique id already registered")
	}
	student := &models.Student{
		UniqueID: req.UniqueID,
		FullName: req.Name,
		RollNo:   req.RollNo,
		Branch:   req.Branch,
		Semester: req.Semester,
		Phone:    req.PhoneNo,
		FeePaid:  req.FeePaid,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register student")
	}
	return student, nil
}

// Update modifies an existing roster entry. The badge code itself is
// immutable; it identifies the row.
func (s *RosterService) Update(ctx context.Context, uniqueID string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	existing, err := s.repo.FindByUniqueID(ctx, uniqueID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	student := *existing
	student.FullName = req.Name
	student.RollNo = req.RollNo
	student.Branch = req.Branch
	student.Semester = req.Semester
	student.Phone = req.PhoneNo
	student.FeePaid = req.FeePaid
	if err := s.repo.Update(ctx, &student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return &student, nil
}

// Unregister removes a student from the roster. Past scans are left in place;
// the grid falls back to "N/A" metadata for them.
func (s *RosterService) Unregister(ctx context.Context, uniqueID string) error {
	if _, err := s.repo.FindByUniqueID(ctx, uniqueID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.repo.Delete(ctx, uniqueID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unregister student")
	}
	return nil
}
