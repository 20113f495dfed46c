package grade

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/academic"
	"github.com/edufam/edufam/core/audit"
	"github.com/edufam/edufam/core/realtime"
	"github.com/edufam/edufam/core/user"
)

var (
	// errors
	ErrNotFound          = errors.New("grade not found")
	ErrInvalidTransition = errors.New("no grades in a valid status for this transition")
)

type (
	Repository interface {
		GetGradeByKey(ctx context.Context, schoolID, studentID, subjectID, term, examType string, exec ...core.DBExecutor) (Grade, error)
		CreateGrade(ctx context.Context, g Grade, exec ...core.DBExecutor) (Grade, error)
		UpdateGrade(ctx context.Context, g Grade, exec ...core.DBExecutor) (Grade, error)
		QueryGrades(ctx context.Context, filter *Filter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Grade, error)
		// TransitionGrades moves the grades of schoolID matched by sel whose status is one of t.From to t.To,
		// in a single conditional update. It returns the number of grades moved.
		TransitionGrades(ctx context.Context, schoolID string, sel Selector, t Transition, change StatusChange, exec ...core.DBExecutor) (int, error)
		CountGradesByStatus(ctx context.Context, filter *Filter, exec ...core.DBExecutor) (map[string]int, error)
	}

	Metrics interface {
		GradeTransition(transition string, count int)
	}

	Service interface {
		Save(ctx context.Context, schoolID string, actor user.User, batch SaveBatch) (SaveResult, error)
		Submit(ctx context.Context, schoolID string, actor user.User, sel Selector) (TransitionResult, error)
		Approve(ctx context.Context, schoolID string, actor user.User, sel Selector) (TransitionResult, error)
		Reject(ctx context.Context, schoolID string, actor user.User, sel Selector, reason string) (TransitionResult, error)
		Release(ctx context.Context, schoolID string, actor user.User, sel Selector) (TransitionResult, error)
		Query(ctx context.Context, filter *Filter, ordering []core.DBOrdering) ([]Grade, error)
		Summary(ctx context.Context, filter *Filter) (Summary, error)
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

func (nopMetrics) GradeTransition(string, int) {}

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

// Save upserts the marks of batch. Missing grades are created as drafts; draft & rejected grades are
// updated (a rejected grade goes back to draft); grades further down the workflow are reported as locked.
func (svc *service) Save(ctx context.Context, schoolID string, actor user.User, batch SaveBatch) (SaveResult, error) {
	subjects, err := svc.checkBatch(ctx, schoolID, actor, batch)
	if err != nil {
		return SaveResult{}, err
	}

	res := SaveResult{Saved: []Grade{}, Locked: []LockedMark{}}
	err = core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
		now := time.Now().UTC()
		for _, mark := range batch.Marks {
			g, err := svc.repo.GetGradeByKey(ctx, schoolID, mark.StudentID, mark.SubjectID, batch.Term, batch.ExamType, core.Execs(exec)...)
			switch {
			case errors.Cause(err) == ErrNotFound:
				g = Grade{
					SchoolID:  schoolID,
					StudentID: mark.StudentID,
					ClassID:   batch.ClassID,
					SubjectID: mark.SubjectID,
					Term:      batch.Term,
					ExamType:  batch.ExamType,
					Comments:  mark.Comments,
					Status:    StatusDraft,
					CreatedBy: actor.ID,
					CreatedAt: now,
					UpdatedAt: now,
				}
				g.SetScore(mark.Score, mark.MaxScore)
				if g, err = svc.repo.CreateGrade(ctx, g, core.Execs(exec)...); err != nil {
					return errors.Wrap(err, "creating grade")
				}
			case err != nil:
				return errors.Wrap(err, "finding grade")
			case !g.IsEditable():
				res.Locked = append(res.Locked, LockedMark{StudentID: g.StudentID, SubjectID: g.SubjectID, Status: g.Status})
				continue
			default:
				g.SetScore(mark.Score, mark.MaxScore)
				g.ClassID = batch.ClassID
				g.Comments = mark.Comments
				g.Status = StatusDraft
				g.RejectedReason = ""
				g.UpdatedAt = now
				if g, err = svc.repo.UpdateGrade(ctx, g, core.Execs(exec)...); err != nil {
					return errors.Wrap(err, "updating grade")
				}
			}
			res.Saved = append(res.Saved, g)
		}
		return nil
	})
	if err != nil {
		return SaveResult{}, errors.Wrap(err, "saving grades")
	}

	svc.audit.Log(ctx, audit.Entry{
		SchoolID:   schoolID,
		ActorID:    actor.ID,
		Action:     "grades.save",
		Resource:   "class",
		ResourceID: batch.ClassID,
		Metadata: map[string]interface{}{
			"term": batch.Term, "exam_type": batch.ExamType, "subjects": subjects,
			"saved": len(res.Saved), "locked": len(res.Locked),
		},
	})
	return res, nil
}

// checkBatch validates the students, subjects & scores of batch against its class and returns the subject IDs.
// Teachers may only save marks of the subjects they teach, unless they are the class teacher.
func (svc *service) checkBatch(ctx context.Context, schoolID string, actor user.User, batch SaveBatch) ([]string, error) {
	cls, err := svc.academics.GetClass(ctx, schoolID, batch.ClassID)
	if err != nil {
		if errors.Cause(err) == academic.ErrClassNotFound {
			return nil, core.NewFieldError("class_id", "unknown class")
		}
		return nil, errors.Wrap(err, "finding class")
	}

	subjects, err := svc.academics.QuerySubjects(ctx, &academic.SubjectFilter{SchoolID: schoolID, ClassID: cls.ID}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying class subjects")
	}
	subjectsByID := make(map[string]academic.Subject, len(subjects))
	for _, sub := range subjects {
		subjectsByID[sub.ID] = sub
	}

	students, err := svc.academics.QueryStudents(ctx, &academic.StudentFilter{SchoolID: schoolID, ClassID: cls.ID}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying class students")
	}
	inClass := make(map[string]bool, len(students))
	for _, std := range students {
		inClass[std.ID] = true
	}

	restricted := !actor.IsAdmin() && !actor.IsPlatformAdmin() && cls.ClassTeacherID != actor.ID
	seen := make(map[string]bool, len(batch.Marks))
	subjectIDs := make([]string, 0)
	for i, mark := range batch.Marks {
		field := fmt.Sprintf("marks[%d]", i)
		sub, ok := subjectsByID[mark.SubjectID]
		if !ok {
			return nil, core.NewFieldError(field+".subject_id", "subject is not taught in this class")
		}
		if restricted && sub.TeacherID != actor.ID {
			return nil, core.NewFieldError(field+".subject_id", "you do not teach this subject")
		}
		if !inClass[mark.StudentID] {
			return nil, core.NewFieldError(field+".student_id", "student is not in this class")
		}
		maxScore := mark.MaxScore
		if maxScore <= 0 {
			maxScore = DefaultMaxScore
		}
		if mark.Score < 0 || mark.Score > maxScore {
			return nil, core.NewFieldError(field+".score", fmt.Sprintf("score must be between 0 and %v", maxScore))
		}
		key := mark.StudentID + "|" + mark.SubjectID
		if seen[key] {
			return nil, core.NewFieldError(field, "duplicate mark for this student and subject")
		}
		seen[key] = true
		if !core.ContainsString(subjectIDs, sub.ID) {
			subjectIDs = append(subjectIDs, sub.ID)
		}
	}
	return subjectIDs, nil
}

func (svc *service) Submit(ctx context.Context, schoolID string, actor user.User, sel Selector) (TransitionResult, error) {
	sel, err := svc.teacherScope(ctx, schoolID, actor, sel)
	if err != nil {
		return TransitionResult{}, err
	}
	return svc.transition(ctx, schoolID, actor, sel, TransitionSubmit, "")
}

// teacherScope limits the selector of a non admin to the subjects they teach
// and to every subject of the classes they are class teacher of.
func (svc *service) teacherScope(ctx context.Context, schoolID string, actor user.User, sel Selector) (Selector, error) {
	if actor.IsAdmin() || actor.IsPlatformAdmin() {
		return sel, nil
	}

	taught, err := svc.academics.QuerySubjects(ctx, &academic.SubjectFilter{SchoolID: schoolID, TeacherID: actor.ID}, nil)
	if err != nil {
		return sel, errors.Wrap(err, "querying taught subjects")
	}
	classes, err := svc.academics.QueryClasses(ctx, &academic.ClassFilter{SchoolID: schoolID, TeacherID: actor.ID}, nil)
	if err != nil {
		return sel, errors.Wrap(err, "querying classes")
	}
	for _, cls := range classes {
		if cls.ClassTeacherID != actor.ID {
			continue
		}
		subjects, err := svc.academics.QuerySubjects(ctx, &academic.SubjectFilter{SchoolID: schoolID, ClassID: cls.ID}, nil)
		if err != nil {
			return sel, errors.Wrap(err, "querying class subjects")
		}
		taught = append(taught, subjects...)
	}

	allowed := make([]string, 0, len(taught))
	for _, sub := range taught {
		if !core.ContainsString(allowed, sub.ID) {
			allowed = append(allowed, sub.ID)
		}
	}
	if len(allowed) == 0 {
		return sel, core.ErrForbidden
	}
	if sel.SubjectID != "" && !core.ContainsString(allowed, sel.SubjectID) {
		return sel, core.NewFieldError("subject_id", "you do not teach this subject")
	}
	sel.SubjectIDs = allowed
	return sel, nil
}

func (svc *service) Approve(ctx context.Context, schoolID string, actor user.User, sel Selector) (TransitionResult, error) {
	return svc.transition(ctx, schoolID, actor, sel, TransitionApprove, "")
}

func (svc *service) Reject(ctx context.Context, schoolID string, actor user.User, sel Selector, reason string) (TransitionResult, error) {
	if reason = core.CleanString(reason); reason == "" {
		return TransitionResult{}, core.NewFieldError("reason", "this field is required")
	}
	return svc.transition(ctx, schoolID, actor, sel, TransitionReject, reason)
}

func (svc *service) Release(ctx context.Context, schoolID string, actor user.User, sel Selector) (TransitionResult, error) {
	return svc.transition(ctx, schoolID, actor, sel, TransitionRelease, "")
}

func (svc *service) transition(ctx context.Context, schoolID string, actor user.User, sel Selector, t Transition, reason string) (TransitionResult, error) {
	change := StatusChange{ActorID: actor.ID, At: time.Now().UTC(), Reason: reason}
	n, err := svc.repo.TransitionGrades(ctx, schoolID, sel, t, change)
	if err != nil {
		return TransitionResult{}, errors.Wrapf(err, "%s grades", t.Name)
	}
	if n == 0 {
		return TransitionResult{}, ErrInvalidTransition
	}
	res := TransitionResult{Transition: t.Name, Status: t.To, Count: n}

	svc.metrics.GradeTransition(t.Name, n)
	svc.audit.Log(ctx, audit.Entry{
		SchoolID:   schoolID,
		ActorID:    actor.ID,
		Action:     "grades." + t.Name,
		Resource:   "grade",
		ResourceID: sel.ClassID,
		Metadata:   selectorMetadata(sel, n, reason),
	})
	evt := realtime.NewEvent(realtime.SchoolTopic(schoolID, realtime.ChannelGrades), realtime.EventUpdate, map[string]interface{}{
		"transition": t.Name,
		"status":     t.To,
		"count":      n,
		"selector":   sel,
	})
	if err := svc.publisher.Publish(ctx, evt); err != nil {
		svc.logger.Warn("publishing grades event", errors.Wrap(err, evt.Topic))
	}
	return res, nil
}

func selectorMetadata(sel Selector, n int, reason string) map[string]interface{} {
	meta := map[string]interface{}{"count": n}
	if len(sel.IDs) > 0 {
		meta["ids"] = sel.IDs
	} else {
		meta["class_id"] = sel.ClassID
		meta["term"] = sel.Term
		meta["exam_type"] = sel.ExamType
		if sel.SubjectID != "" {
			meta["subject_id"] = sel.SubjectID
		}
	}
	if reason != "" {
		meta["reason"] = reason
	}
	return meta
}

func (svc *service) Query(ctx context.Context, filter *Filter, ordering []core.DBOrdering) ([]Grade, error) {
	return svc.repo.QueryGrades(ctx, filter, ordering)
}

func (svc *service) Summary(ctx context.Context, filter *Filter) (Summary, error) {
	counts, err := svc.repo.CountGradesByStatus(ctx, filter)
	if err != nil {
		return Summary{}, errors.Wrap(err, "counting grades")
	}
	sum := Summary{Counts: make(map[string]int, len(Statuses))}
	for _, st := range Statuses {
		sum.Counts[st] = counts[st]
		sum.Total += counts[st]
	}
	return sum, nil
}
