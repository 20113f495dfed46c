package academic

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/audit"
	"github.com/edufam/edufam/core/user"
)

var (
	// errors
	ErrClassNotFound         = errors.New("class not found")
	ErrSubjectNotFound       = errors.New("subject not found")
	ErrStudentNotFound       = errors.New("student not found")
	ErrClassExists           = errors.New("a class with this name and stream already exists for this academic year")
	ErrSubjectCodeExists     = errors.New("a subject with this code already exists in this class")
	ErrAdmissionNumberExists = errors.New("a student with this admission number already exists")

	errNotStaff      = "must be a staff member of this school"
	errNotParent     = "must be a parent of this school"
	errUnknownClass  = "unknown class"
	errSameClass     = "cannot promote a class into itself"
	errNoTargetClass = "target_class_id is required unless graduating"
)

type (
	Repository interface {
		CreateClass(ctx context.Context, cls Class, exec ...core.DBExecutor) (Class, error)
		QueryClasses(ctx context.Context, filter *ClassFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Class, error)
		CountClasses(ctx context.Context, filter *ClassFilter, exec ...core.DBExecutor) (int, error)
		GetClass(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (Class, error)
		UpdateClass(ctx context.Context, cls Class, exec ...core.DBExecutor) (Class, error)
		DeleteClass(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) error

		CreateSubject(ctx context.Context, sub Subject, exec ...core.DBExecutor) (Subject, error)
		QuerySubjects(ctx context.Context, filter *SubjectFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Subject, error)
		CountSubjects(ctx context.Context, filter *SubjectFilter, exec ...core.DBExecutor) (int, error)
		GetSubject(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (Subject, error)
		UpdateSubject(ctx context.Context, sub Subject, exec ...core.DBExecutor) (Subject, error)
		DeleteSubject(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) error

		CreateStudent(ctx context.Context, std Student, exec ...core.DBExecutor) (Student, error)
		QueryStudents(ctx context.Context, filter *StudentFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Student, error)
		CountStudents(ctx context.Context, filter *StudentFilter, exec ...core.DBExecutor) (int, error)
		GetStudent(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (Student, error)
		UpdateStudent(ctx context.Context, std Student, exec ...core.DBExecutor) (Student, error)
		DeleteStudent(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) error
		// MoveStudents moves the active students of fromClassID to toClassID.
		MoveStudents(ctx context.Context, schoolID, fromClassID, toClassID string, exec ...core.DBExecutor) (int, error)
		// SetStudentsStatus changes the status of the active students of classID.
		SetStudentsStatus(ctx context.Context, schoolID, classID, status string, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		CreateClass(ctx context.Context, schoolID string, nc NewClass) (Class, error)
		QueryClasses(ctx context.Context, filter *ClassFilter, ordering []core.DBOrdering) ([]Class, error)
		CountClasses(ctx context.Context, filter *ClassFilter) (int, error)
		GetClass(ctx context.Context, schoolID, id string) (Class, error)
		UpdateClass(ctx context.Context, cls Class, uc UpdateClass) (Class, error)
		DeleteClass(ctx context.Context, cls Class) error
		Promote(ctx context.Context, cls Class, p Promotion) (int, error)

		CreateSubject(ctx context.Context, schoolID string, ns NewSubject) (Subject, error)
		QuerySubjects(ctx context.Context, filter *SubjectFilter, ordering []core.DBOrdering) ([]Subject, error)
		CountSubjects(ctx context.Context, filter *SubjectFilter) (int, error)
		GetSubject(ctx context.Context, schoolID, id string) (Subject, error)
		UpdateSubject(ctx context.Context, sub Subject, us UpdateSubject) (Subject, error)
		DeleteSubject(ctx context.Context, sub Subject) error

		CreateStudent(ctx context.Context, schoolID string, ns NewStudent) (Student, error)
		QueryStudents(ctx context.Context, filter *StudentFilter, ordering []core.DBOrdering) ([]Student, error)
		CountStudents(ctx context.Context, filter *StudentFilter) (int, error)
		GetStudent(ctx context.Context, schoolID, id string) (Student, error)
		UpdateStudent(ctx context.Context, std Student, us UpdateStudent) (Student, error)
		DeleteStudent(ctx context.Context, std Student) error
	}

	service struct {
		db    core.DB
		repo  Repository
		users user.Repository
		audit audit.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, users user.Repository, auditLog audit.Logger) Service {
	return &service{db: db, repo: repo, users: users, audit: auditLog}
}

// checkMember verifies that userID is an active user of schoolID accepted by isOK.
func (svc *service) checkMember(ctx context.Context, schoolID, userID, field, msg string, isOK func(user.User) bool) error {
	if userID == "" {
		return nil
	}
	usr, err := svc.users.GetUser(ctx, user.GetFilter{ID: userID})
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return core.NewFieldError(field, msg)
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if usr.SchoolID != schoolID || !usr.IsActive || !isOK(usr) {
		return core.NewFieldError(field, msg)
	}
	return nil
}

func isStaffOrAdmin(usr user.User) bool { return usr.IsStaff() || usr.IsAdmin() }
func isParent(usr user.User) bool       { return usr.IsParent() }

func (svc *service) checkClass(ctx context.Context, schoolID, classID, field string) error {
	if _, err := svc.repo.GetClass(ctx, schoolID, classID); err != nil {
		if errors.Cause(err) == ErrClassNotFound {
			return core.NewFieldError(field, errUnknownClass)
		}
		return errors.Wrap(err, "finding class")
	}
	return nil
}

func existsErr(err error, field string) error {
	switch errors.Cause(err) {
	case ErrClassExists, ErrSubjectCodeExists, ErrAdmissionNumberExists:
		cause := errors.Cause(err)
		return core.NewValidationError(cause, core.FieldError{Field: field, Error: cause.Error()})
	}
	return err
}

// Classes

func (svc *service) CreateClass(ctx context.Context, schoolID string, nc NewClass) (Class, error) {
	if err := svc.checkMember(ctx, schoolID, nc.ClassTeacherID, "class_teacher_id", errNotStaff, isStaffOrAdmin); err != nil {
		return Class{}, err
	}

	now := time.Now().UTC()
	cls, err := svc.repo.CreateClass(ctx, Class{
		SchoolID:       schoolID,
		Name:           nc.Name,
		Stream:         nc.Stream,
		Level:          nc.Level,
		AcademicYear:   nc.AcademicYear,
		ClassTeacherID: nc.ClassTeacherID,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return Class{}, existsErr(err, "name")
	}
	svc.audit.Log(ctx, audit.Entry{SchoolID: schoolID, Action: "classes.create", Resource: "class", ResourceID: cls.ID})
	return cls, nil
}

func (svc *service) QueryClasses(ctx context.Context, filter *ClassFilter, ordering []core.DBOrdering) ([]Class, error) {
	return svc.repo.QueryClasses(ctx, filter, ordering)
}

func (svc *service) CountClasses(ctx context.Context, filter *ClassFilter) (int, error) {
	return svc.repo.CountClasses(ctx, filter)
}

func (svc *service) GetClass(ctx context.Context, schoolID, id string) (Class, error) {
	return svc.repo.GetClass(ctx, schoolID, id)
}

func (svc *service) UpdateClass(ctx context.Context, cls Class, uc UpdateClass) (Class, error) {
	if err := svc.checkMember(ctx, cls.SchoolID, uc.ClassTeacherID, "class_teacher_id", errNotStaff, isStaffOrAdmin); err != nil {
		return Class{}, err
	}
	if uc.Name != "" {
		cls.Name = uc.Name
	}
	if uc.Stream != "" {
		cls.Stream = uc.Stream
	}
	if uc.Level != nil {
		cls.Level = *uc.Level
	}
	if uc.AcademicYear != "" {
		cls.AcademicYear = uc.AcademicYear
	}
	if uc.ClassTeacherID != "" {
		cls.ClassTeacherID = uc.ClassTeacherID
	}
	cls.UpdatedAt = time.Now().UTC()

	cls, err := svc.repo.UpdateClass(ctx, cls)
	if err != nil {
		return Class{}, existsErr(err, "name")
	}
	svc.audit.Log(ctx, audit.Entry{SchoolID: cls.SchoolID, Action: "classes.update", Resource: "class", ResourceID: cls.ID})
	return cls, nil
}

func (svc *service) DeleteClass(ctx context.Context, cls Class) error {
	if err := svc.repo.DeleteClass(ctx, cls.SchoolID, cls.ID); err != nil {
		return err
	}
	svc.audit.Log(ctx, audit.Entry{SchoolID: cls.SchoolID, Action: "classes.delete", Resource: "class", ResourceID: cls.ID})
	return nil
}

// Promote moves the active students of cls to the target class (or graduates them) in one transaction.
func (svc *service) Promote(ctx context.Context, cls Class, p Promotion) (int, error) {
	var moved int
	if !p.Graduate {
		if p.TargetClassID == "" {
			return 0, core.NewFieldError("target_class_id", errNoTargetClass)
		}
		if p.TargetClassID == cls.ID {
			return 0, core.NewFieldError("target_class_id", errSameClass)
		}
		if err := svc.checkClass(ctx, cls.SchoolID, p.TargetClassID, "target_class_id"); err != nil {
			return 0, err
		}
	}

	err := core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
		var err error
		if p.Graduate {
			moved, err = svc.repo.SetStudentsStatus(ctx, cls.SchoolID, cls.ID, StatusGraduated, core.Execs(exec)...)
		} else {
			moved, err = svc.repo.MoveStudents(ctx, cls.SchoolID, cls.ID, p.TargetClassID, core.Execs(exec)...)
		}
		return err
	})
	if err != nil {
		return 0, errors.Wrap(err, "promoting students")
	}

	svc.audit.Log(ctx, audit.Entry{
		SchoolID:   cls.SchoolID,
		Action:     "classes.promote",
		Resource:   "class",
		ResourceID: cls.ID,
		Metadata:   map[string]interface{}{"target_class_id": p.TargetClassID, "graduate": p.Graduate, "students": moved},
	})
	return moved, nil
}

// Subjects

func (svc *service) CreateSubject(ctx context.Context, schoolID string, ns NewSubject) (Subject, error) {
	if err := svc.checkClass(ctx, schoolID, ns.ClassID, "class_id"); err != nil {
		return Subject{}, err
	}
	if err := svc.checkMember(ctx, schoolID, ns.TeacherID, "teacher_id", errNotStaff, isStaffOrAdmin); err != nil {
		return Subject{}, err
	}

	now := time.Now().UTC()
	sub, err := svc.repo.CreateSubject(ctx, Subject{
		SchoolID:  schoolID,
		ClassID:   ns.ClassID,
		Name:      ns.Name,
		Code:      ns.Code,
		TeacherID: ns.TeacherID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Subject{}, existsErr(err, "code")
	}
	svc.audit.Log(ctx, audit.Entry{SchoolID: schoolID, Action: "subjects.create", Resource: "subject", ResourceID: sub.ID})
	return sub, nil
}

func (svc *service) QuerySubjects(ctx context.Context, filter *SubjectFilter, ordering []core.DBOrdering) ([]Subject, error) {
	return svc.repo.QuerySubjects(ctx, filter, ordering)
}

func (svc *service) CountSubjects(ctx context.Context, filter *SubjectFilter) (int, error) {
	return svc.repo.CountSubjects(ctx, filter)
}

func (svc *service) GetSubject(ctx context.Context, schoolID, id string) (Subject, error) {
	return svc.repo.GetSubject(ctx, schoolID, id)
}

func (svc *service) UpdateSubject(ctx context.Context, sub Subject, us UpdateSubject) (Subject, error) {
	if err := svc.checkMember(ctx, sub.SchoolID, us.TeacherID, "teacher_id", errNotStaff, isStaffOrAdmin); err != nil {
		return Subject{}, err
	}
	if us.Name != "" {
		sub.Name = us.Name
	}
	if us.Code != "" {
		sub.Code = us.Code
	}
	if us.TeacherID != "" {
		sub.TeacherID = us.TeacherID
	}
	sub.UpdatedAt = time.Now().UTC()

	sub, err := svc.repo.UpdateSubject(ctx, sub)
	if err != nil {
		return Subject{}, existsErr(err, "code")
	}
	svc.audit.Log(ctx, audit.Entry{SchoolID: sub.SchoolID, Action: "subjects.update", Resource: "subject", ResourceID: sub.ID})
	return sub, nil
}

func (svc *service) DeleteSubject(ctx context.Context, sub Subject) error {
	if err := svc.repo.DeleteSubject(ctx, sub.SchoolID, sub.ID); err != nil {
		return err
	}
	svc.audit.Log(ctx, audit.Entry{SchoolID: sub.SchoolID, Action: "subjects.delete", Resource: "subject", ResourceID: sub.ID})
	return nil
}

// Students

func (svc *service) CreateStudent(ctx context.Context, schoolID string, ns NewStudent) (Student, error) {
	if err := svc.checkClass(ctx, schoolID, ns.ClassID, "class_id"); err != nil {
		return Student{}, err
	}
	if err := svc.checkMember(ctx, schoolID, ns.ParentID, "parent_id", errNotParent, isParent); err != nil {
		return Student{}, err
	}

	now := time.Now().UTC()
	std, err := svc.repo.CreateStudent(ctx, Student{
		SchoolID:        schoolID,
		ClassID:         ns.ClassID,
		ParentID:        ns.ParentID,
		AdmissionNumber: ns.AdmissionNumber,
		Name:            ns.Name,
		Gender:          ns.Gender,
		DateOfBirth:     ns.DateOfBirth,
		Status:          StatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return Student{}, existsErr(err, "admission_number")
	}
	svc.audit.Log(ctx, audit.Entry{SchoolID: schoolID, Action: "students.create", Resource: "student", ResourceID: std.ID})
	return std, nil
}

func (svc *service) QueryStudents(ctx context.Context, filter *StudentFilter, ordering []core.DBOrdering) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, filter, ordering)
}

func (svc *service) CountStudents(ctx context.Context, filter *StudentFilter) (int, error) {
	return svc.repo.CountStudents(ctx, filter)
}

func (svc *service) GetStudent(ctx context.Context, schoolID, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, schoolID, id)
}

func (svc *service) UpdateStudent(ctx context.Context, std Student, us UpdateStudent) (Student, error) {
	if us.ClassID != "" && us.ClassID != std.ClassID {
		if err := svc.checkClass(ctx, std.SchoolID, us.ClassID, "class_id"); err != nil {
			return Student{}, err
		}
		std.ClassID = us.ClassID
	}
	if err := svc.checkMember(ctx, std.SchoolID, us.ParentID, "parent_id", errNotParent, isParent); err != nil {
		return Student{}, err
	}
	if us.ParentID != "" {
		std.ParentID = us.ParentID
	}
	if us.AdmissionNumber != "" {
		std.AdmissionNumber = us.AdmissionNumber
	}
	if us.Name != "" {
		std.Name = us.Name
	}
	if us.Gender != "" {
		std.Gender = us.Gender
	}
	if !us.DateOfBirth.IsZero() {
		std.DateOfBirth = us.DateOfBirth
	}
	if us.Status != "" {
		std.Status = us.Status
	}
	std.UpdatedAt = time.Now().UTC()

	std, err := svc.repo.UpdateStudent(ctx, std)
	if err != nil {
		return Student{}, existsErr(err, "admission_number")
	}
	svc.audit.Log(ctx, audit.Entry{SchoolID: std.SchoolID, Action: "students.update", Resource: "student", ResourceID: std.ID})
	return std, nil
}

func (svc *service) DeleteStudent(ctx context.Context, std Student) error {
	if err := svc.repo.DeleteStudent(ctx, std.SchoolID, std.ID); err != nil {
		return err
	}
	svc.audit.Log(ctx, audit.Entry{SchoolID: std.SchoolID, Action: "students.delete", Resource: "student", ResourceID: std.ID})
	return nil
}
