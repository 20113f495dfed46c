// Package report builds report cards and the class sheets exported as spreadsheets.
package report

import (
	"context"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/academic"
	"github.com/edufam/edufam/core/attendance"
	"github.com/edufam/edufam/core/grade"
)

type (
	SubjectResult struct {
		SubjectID  string  `json:"subject_id"`
		Subject    string  `json:"subject"`
		Code       string  `json:"code"`
		ExamType   string  `json:"exam_type"`
		Score      float64 `json:"score"`
		MaxScore   float64 `json:"max_score"`
		Percentage float64 `json:"percentage"`
		Letter     string  `json:"letter"`
		Status     string  `json:"status"`
		Comments   string  `json:"comments"`
	}

	ReportCard struct {
		Student    academic.Student           `json:"student"`
		Class      academic.Class             `json:"class"`
		Term       string                     `json:"term"`
		Results    []SubjectResult            `json:"results"`
		Average    float64                    `json:"average"`
		Letter     string                     `json:"letter"`
		Attendance *attendance.StudentSummary `json:"attendance,omitempty"`
	}

	CardOptions struct {
		Term string
		// IncludeUnreleased adds the approved grades not released yet.
		IncludeUnreleased bool
		// From & To bound the attendance records counted; attendance is left out when both are zero.
		From core.Date
		To   core.Date
	}

	// Table is a sheet: a title, a header row and the data rows.
	Table struct {
		Title  string
		Header []string
		Rows   [][]interface{}
	}

	Service interface {
		ReportCard(ctx context.Context, schoolID, studentID string, opts CardOptions) (ReportCard, error)
		GradesSheet(ctx context.Context, schoolID, classID, term, examType string, includeUnreleased bool) (Table, error)
		AttendanceSheet(ctx context.Context, schoolID, classID string, from, to core.Date) (Table, error)
	}

	service struct {
		academics  academic.Repository
		grades     grade.Repository
		attendance attendance.Repository
	}
)

var _ Service = (*service)(nil)

func NewService(academics academic.Repository, grades grade.Repository, att attendance.Repository) Service {
	return &service{academics: academics, grades: grades, attendance: att}
}

func statuses(includeUnreleased bool) []string {
	if includeUnreleased {
		return []string{grade.StatusApproved, grade.StatusReleased}
	}
	return []string{grade.StatusReleased}
}

// Mean is the average of percentages rounded to 2 decimals.
func Mean(percentages []float64) float64 {
	if len(percentages) == 0 {
		return 0
	}
	var sum float64
	for _, p := range percentages {
		sum += p
	}
	return math.Round(sum*100/float64(len(percentages))) / 100
}

func (svc *service) subjects(ctx context.Context, schoolID, classID string) ([]academic.Subject, error) {
	subjects, err := svc.academics.QuerySubjects(ctx, &academic.SubjectFilter{SchoolID: schoolID, ClassID: classID}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying class subjects")
	}
	sort.SliceStable(subjects, func(i, j int) bool { return subjects[i].Code < subjects[j].Code })
	return subjects, nil
}

func (svc *service) ReportCard(ctx context.Context, schoolID, studentID string, opts CardOptions) (ReportCard, error) {
	std, err := svc.academics.GetStudent(ctx, schoolID, studentID)
	if err != nil {
		return ReportCard{}, err
	}
	cls, err := svc.academics.GetClass(ctx, schoolID, std.ClassID)
	if err != nil {
		return ReportCard{}, errors.Wrap(err, "finding student class")
	}
	grades, err := svc.grades.QueryGrades(ctx, &grade.Filter{
		SchoolID:  schoolID,
		StudentID: std.ID,
		Term:      opts.Term,
		Statuses:  statuses(opts.IncludeUnreleased),
	}, []core.DBOrdering{{Field: "exam_type", Ascending: true}})
	if err != nil {
		return ReportCard{}, errors.Wrap(err, "querying grades")
	}

	// grades from earlier classes keep their own subjects
	subjectsByID := make(map[string]academic.Subject)
	if len(grades) > 0 {
		ids := make([]string, 0, len(grades))
		for _, g := range grades {
			if !core.ContainsString(ids, g.SubjectID) {
				ids = append(ids, g.SubjectID)
			}
		}
		subjects, err := svc.academics.QuerySubjects(ctx, &academic.SubjectFilter{SchoolID: schoolID, IDs: ids}, nil)
		if err != nil {
			return ReportCard{}, errors.Wrap(err, "querying graded subjects")
		}
		for _, sub := range subjects {
			subjectsByID[sub.ID] = sub
		}
	}

	card := ReportCard{Student: std, Class: cls, Term: opts.Term, Results: make([]SubjectResult, 0, len(grades))}
	percentages := make([]float64, 0, len(grades))
	for _, g := range grades {
		sub := subjectsByID[g.SubjectID]
		card.Results = append(card.Results, SubjectResult{
			SubjectID:  g.SubjectID,
			Subject:    sub.Name,
			Code:       sub.Code,
			ExamType:   g.ExamType,
			Score:      g.Score,
			MaxScore:   g.MaxScore,
			Percentage: g.Percentage,
			Letter:     g.Letter,
			Status:     g.Status,
			Comments:   g.Comments,
		})
		percentages = append(percentages, g.Percentage)
	}
	sort.SliceStable(card.Results, func(i, j int) bool { return card.Results[i].Code < card.Results[j].Code })
	card.Average = Mean(percentages)
	if len(percentages) > 0 {
		card.Letter = grade.Letter(card.Average)
	}

	if !opts.From.IsZero() || !opts.To.IsZero() {
		records, err := svc.attendance.QueryRecords(ctx, &attendance.Filter{
			SchoolID:  schoolID,
			StudentID: std.ID,
			From:      opts.From,
			To:        opts.To,
		}, nil)
		if err != nil {
			return ReportCard{}, errors.Wrap(err, "querying attendance")
		}
		summary := attendance.StudentSummary{StudentID: std.ID}
		if sums := attendance.Summarize(records); len(sums) > 0 {
			summary = sums[0]
		}
		card.Attendance = &summary
	}
	return card, nil
}

func (svc *service) students(ctx context.Context, schoolID, classID string) (academic.Class, []academic.Student, error) {
	cls, err := svc.academics.GetClass(ctx, schoolID, classID)
	if err != nil {
		return academic.Class{}, nil, err
	}
	students, err := svc.academics.QueryStudents(ctx, &academic.StudentFilter{SchoolID: schoolID, ClassID: classID}, nil)
	if err != nil {
		return academic.Class{}, nil, errors.Wrap(err, "querying class students")
	}
	sort.SliceStable(students, func(i, j int) bool { return students[i].Name < students[j].Name })
	return cls, students, nil
}

func className(cls academic.Class) string {
	if cls.Stream == "" {
		return cls.Name
	}
	return cls.Name + " " + cls.Stream
}

// GradesSheet has a row per student, a percentage column per subject and the mean.
func (svc *service) GradesSheet(ctx context.Context, schoolID, classID, term, examType string, includeUnreleased bool) (Table, error) {
	cls, students, err := svc.students(ctx, schoolID, classID)
	if err != nil {
		return Table{}, err
	}
	subjects, err := svc.subjects(ctx, schoolID, classID)
	if err != nil {
		return Table{}, err
	}
	grades, err := svc.grades.QueryGrades(ctx, &grade.Filter{
		SchoolID: schoolID,
		ClassID:  classID,
		Term:     term,
		ExamType: examType,
		Statuses: statuses(includeUnreleased),
	}, nil)
	if err != nil {
		return Table{}, errors.Wrap(err, "querying grades")
	}
	pct := make(map[string]float64, len(grades))
	for _, g := range grades {
		pct[g.StudentID+"|"+g.SubjectID] = g.Percentage
	}

	t := Table{
		Title:  className(cls) + " " + term + " " + examType,
		Header: []string{"Admission No", "Name"},
		Rows:   make([][]interface{}, 0, len(students)),
	}
	for _, sub := range subjects {
		t.Header = append(t.Header, sub.Code)
	}
	t.Header = append(t.Header, "Mean", "Grade")

	for _, std := range students {
		row := []interface{}{std.AdmissionNumber, std.Name}
		scores := make([]float64, 0, len(subjects))
		for _, sub := range subjects {
			p, ok := pct[std.ID+"|"+sub.ID]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, p)
			scores = append(scores, p)
		}
		if len(scores) == 0 {
			row = append(row, "", "")
		} else {
			mean := Mean(scores)
			row = append(row, mean, grade.Letter(mean))
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// AttendanceSheet has a row per student with its attendance counts between from and to.
func (svc *service) AttendanceSheet(ctx context.Context, schoolID, classID string, from, to core.Date) (Table, error) {
	cls, students, err := svc.students(ctx, schoolID, classID)
	if err != nil {
		return Table{}, err
	}
	records, err := svc.attendance.QueryRecords(ctx, &attendance.Filter{SchoolID: schoolID, ClassID: classID, From: from, To: to}, nil)
	if err != nil {
		return Table{}, errors.Wrap(err, "querying attendance")
	}
	sums := make(map[string]attendance.StudentSummary)
	for _, s := range attendance.Summarize(records) {
		sums[s.StudentID] = s
	}

	t := Table{
		Title:  className(cls) + " attendance " + from.String() + " " + to.String(),
		Header: []string{"Admission No", "Name", "Present", "Absent", "Late", "Excused", "Total", "Rate (%)"},
		Rows:   make([][]interface{}, 0, len(students)),
	}
	for _, std := range students {
		s := sums[std.ID]
		t.Rows = append(t.Rows, []interface{}{std.AdmissionNumber, std.Name, s.Present, s.Absent, s.Late, s.Excused, s.Total, s.Rate})
	}
	return t, nil
}
