package timetable

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/academic"
	"github.com/edufam/edufam/core/audit"
	"github.com/edufam/edufam/core/realtime"
)

type (
	Repository interface {
		QueryEntries(ctx context.Context, filter *Filter, exec ...core.DBExecutor) ([]Entry, error)
		CreateEntries(ctx context.Context, entries []Entry, exec ...core.DBExecutor) ([]Entry, error)
		// DeleteEntries removes the entries of a class for a term and returns how many were removed.
		DeleteEntries(ctx context.Context, schoolID, classID, term string, exec ...core.DBExecutor) (int, error)
	}

	Metrics interface {
		TimetableGenerated(preview bool, unfilled int)
	}

	Service interface {
		Generate(ctx context.Context, schoolID string, req Request) (Result, error)
		Query(ctx context.Context, filter *Filter) ([]Entry, error)
		Delete(ctx context.Context, schoolID, classID, term string) (int, error)
	}

	service struct {
		db        core.DB
		repo      Repository
		academics academic.Repository
		audit     audit.Logger
		publisher realtime.Publisher
		metrics   Metrics
		logger    core.Logger
	}

	nopMetrics struct{}
)

func (nopMetrics) TimetableGenerated(bool, int) {}

var _ Service = (*service)(nil)

func NewService(
	db core.DB,
	repo Repository,
	academics academic.Repository,
	auditLog audit.Logger,
	publisher realtime.Publisher,
	metrics Metrics,
	logger core.Logger,
) Service {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &service{
		db:        db,
		repo:      repo,
		academics: academics,
		audit:     auditLog,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// loads resolves the requested subjects against the class, defaulting each teacher to the subject's teacher.
func (svc *service) loads(ctx context.Context, schoolID string, req Request) ([]SubjectLoad, error) {
	if _, err := svc.academics.GetClass(ctx, schoolID, req.ClassID); err != nil {
		if errors.Cause(err) == academic.ErrClassNotFound {
			return nil, core.NewFieldError("class_id", "unknown class")
		}
		return nil, errors.Wrap(err, "finding class")
	}

	subjects, err := svc.academics.QuerySubjects(ctx, &academic.SubjectFilter{SchoolID: schoolID, ClassID: req.ClassID}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying class subjects")
	}
	byID := make(map[string]academic.Subject, len(subjects))
	for _, sub := range subjects {
		byID[sub.ID] = sub
	}

	loads := make([]SubjectLoad, 0, len(req.Subjects))
	for _, load := range req.Subjects {
		sub, ok := byID[load.SubjectID]
		if !ok {
			return nil, core.NewFieldError("subjects", "subject "+load.SubjectID+" is not taught in this class")
		}
		if load.TeacherID == "" {
			load.TeacherID = sub.TeacherID
		}
		loads = append(loads, load)
	}
	return loads, nil
}

func (svc *service) Generate(ctx context.Context, schoolID string, req Request) (Result, error) {
	loads, err := svc.loads(ctx, schoolID, req)
	if err != nil {
		return Result{}, err
	}

	// teachers already booked by the other classes of the school this term
	others, err := svc.repo.QueryEntries(ctx, &Filter{SchoolID: schoolID, Term: req.Term, ExcludeClassID: req.ClassID})
	if err != nil {
		return Result{}, errors.Wrap(err, "querying timetable entries")
	}
	busy := make(map[string]bool, len(others))
	for _, e := range others {
		if e.TeacherID != "" {
			busy[busyKey(e.TeacherID, e.Day, e.TimeSlot)] = true
		}
	}

	entries, unfilled := Generate(schoolID, req.ClassID, req.Term, loads, busy)
	res := Result{Entries: entries, Unfilled: unfilled, Preview: req.Preview}
	svc.metrics.TimetableGenerated(req.Preview, len(unfilled))
	if req.Preview {
		return res, nil
	}

	err = core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
		if _, err := svc.repo.DeleteEntries(ctx, schoolID, req.ClassID, req.Term, core.Execs(exec)...); err != nil {
			return errors.Wrap(err, "deleting previous entries")
		}
		now := time.Now().UTC()
		for i := range entries {
			entries[i].CreatedAt = now
		}
		saved, err := svc.repo.CreateEntries(ctx, entries, core.Execs(exec)...)
		if err != nil {
			return errors.Wrap(err, "creating entries")
		}
		res.Entries = saved
		return nil
	})
	if err != nil {
		return Result{}, errors.Wrap(err, "saving timetable")
	}

	svc.audit.Log(ctx, audit.Entry{
		SchoolID:   schoolID,
		Action:     "timetables.generate",
		Resource:   "class",
		ResourceID: req.ClassID,
		Metadata:   map[string]interface{}{"term": req.Term, "entries": len(res.Entries), "unfilled": len(unfilled)},
	})
	evt := realtime.NewEvent(realtime.SchoolTopic(schoolID, realtime.ChannelTimetable), realtime.EventUpdate, map[string]interface{}{
		"class_id": req.ClassID,
		"term":     req.Term,
		"entries":  len(res.Entries),
	})
	if err := svc.publisher.Publish(ctx, evt); err != nil {
		svc.logger.Warn("publishing timetable event", errors.Wrap(err, evt.Topic))
	}
	return res, nil
}

func (svc *service) Query(ctx context.Context, filter *Filter) ([]Entry, error) {
	entries, err := svc.repo.QueryEntries(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying timetable entries")
	}
	SortEntries(entries)
	return entries, nil
}

func (svc *service) Delete(ctx context.Context, schoolID, classID, term string) (int, error) {
	n, err := svc.repo.DeleteEntries(ctx, schoolID, classID, term)
	if err != nil {
		return 0, errors.Wrap(err, "deleting timetable entries")
	}
	svc.audit.Log(ctx, audit.Entry{
		SchoolID:   schoolID,
		Action:     "timetables.delete",
		Resource:   "class",
		ResourceID: classID,
		Metadata:   map[string]interface{}{"term": term, "entries": n},
	})
	return n, nil
}
