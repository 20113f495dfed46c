package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/academic"
	"github.com/edufam/edufam/core/audit"
	"github.com/edufam/edufam/core/user"
)

type (
	Repository interface {
		// UpsertRecord inserts r or, when the student already has a record for that date & session, updates it.
		UpsertRecord(ctx context.Context, r Record, exec ...core.DBExecutor) (Record, error)
		QueryRecords(ctx context.Context, filter *Filter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Record, error)
	}

	Service interface {
		Mark(ctx context.Context, schoolID string, actor user.User, reg Register) ([]Record, error)
		Query(ctx context.Context, filter *Filter, ordering []core.DBOrdering) ([]Record, error)
		Summary(ctx context.Context, filter *Filter) ([]StudentSummary, error)
	}

	service struct {
		db        core.DB
		repo      Repository
		academics academic.Repository
		audit     audit.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, academics academic.Repository, auditLog audit.Logger) Service {
	return &service{db: db, repo: repo, academics: academics, audit: auditLog}
}

func (svc *service) Mark(ctx context.Context, schoolID string, actor user.User, reg Register) ([]Record, error) {
	if _, err := svc.academics.GetClass(ctx, schoolID, reg.ClassID); err != nil {
		if errors.Cause(err) == academic.ErrClassNotFound {
			return nil, core.NewFieldError("class_id", "unknown class")
		}
		return nil, errors.Wrap(err, "finding class")
	}
	students, err := svc.academics.QueryStudents(ctx, &academic.StudentFilter{SchoolID: schoolID, ClassID: reg.ClassID}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying class students")
	}
	inClass := make(map[string]bool, len(students))
	for _, std := range students {
		inClass[std.ID] = true
	}
	for i, m := range reg.Marks {
		if !inClass[m.StudentID] {
			return nil, core.NewFieldError(fmt.Sprintf("marks[%d].student_id", i), "student is not in this class")
		}
	}

	records := make([]Record, 0, len(reg.Marks))
	err = core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
		now := time.Now().UTC()
		for _, m := range reg.Marks {
			r, err := svc.repo.UpsertRecord(ctx, Record{
				SchoolID:  schoolID,
				StudentID: m.StudentID,
				ClassID:   reg.ClassID,
				Date:      reg.Date,
				Session:   reg.Session,
				Status:    m.Status,
				Remarks:   m.Remarks,
				MarkedBy:  actor.ID,
				CreatedAt: now,
				UpdatedAt: now,
			}, core.Execs(exec)...)
			if err != nil {
				return errors.Wrap(err, "upserting attendance record")
			}
			records = append(records, r)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "marking attendance")
	}

	svc.audit.Log(ctx, audit.Entry{
		SchoolID:   schoolID,
		ActorID:    actor.ID,
		Action:     "attendance.mark",
		Resource:   "class",
		ResourceID: reg.ClassID,
		Metadata:   map[string]interface{}{"date": reg.Date.String(), "session": reg.Session, "records": len(records)},
	})
	return records, nil
}

func (svc *service) Query(ctx context.Context, filter *Filter, ordering []core.DBOrdering) ([]Record, error) {
	return svc.repo.QueryRecords(ctx, filter, ordering)
}

func (svc *service) Summary(ctx context.Context, filter *Filter) ([]StudentSummary, error) {
	records, err := svc.repo.QueryRecords(ctx, filter, []core.DBOrdering{{Field: "date", Ascending: true}})
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance records")
	}
	return Summarize(records), nil
}
