// Package dashboard computes the summary shown on the landing page of each portal.
package dashboard

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/academic"
	"github.com/edufam/edufam/core/fee"
	"github.com/edufam/edufam/core/grade"
	"github.com/edufam/edufam/core/school"
	"github.com/edufam/edufam/core/user"
)

// Portals
const (
	PortalPlatform = "platform"
	PortalAdmin    = "admin"
	PortalTeacher  = "teacher"
	PortalFinance  = "finance"
	PortalParent   = "parent"
)

type (
	Stats struct {
		Portal  string                 `json:"portal"`
		Counts  map[string]int         `json:"counts"`
		Amounts map[string]float64     `json:"amounts,omitempty"`
		Fees    *fee.CollectionSummary `json:"fees,omitempty"`
	}

	Service interface {
		Stats(ctx context.Context, usr user.User, schoolID string) (Stats, error)
	}

	service struct {
		schools   school.Repository
		users     user.Repository
		academics academic.Repository
		grades    grade.Repository
		fees      fee.Service
	}
)

var _ Service = (*service)(nil)

func NewService(
	schools school.Repository,
	users user.Repository,
	academics academic.Repository,
	grades grade.Repository,
	fees fee.Service,
) Service {
	return &service{schools: schools, users: users, academics: academics, grades: grades, fees: fees}
}

// Portal picks the portal of usr from its highest role.
func Portal(usr user.User) string {
	switch {
	case usr.IsPlatformAdmin():
		return PortalPlatform
	case usr.IsAdmin():
		return PortalAdmin
	case usr.IsFinanceOfficer():
		return PortalFinance
	case usr.IsTeacher():
		return PortalTeacher
	default:
		return PortalParent
	}
}

func (svc *service) Stats(ctx context.Context, usr user.User, schoolID string) (Stats, error) {
	stats := Stats{Portal: Portal(usr), Counts: map[string]int{}}
	var err error
	switch stats.Portal {
	case PortalPlatform:
		err = svc.platform(ctx, schoolID, &stats)
	case PortalAdmin:
		err = svc.admin(ctx, schoolID, &stats)
	case PortalFinance:
		err = svc.finance(ctx, schoolID, &stats)
	case PortalTeacher:
		err = svc.teacher(ctx, schoolID, usr, &stats)
	default:
		err = svc.parent(ctx, schoolID, usr, &stats)
	}
	if err != nil {
		return Stats{}, errors.Wrapf(err, "computing %s dashboard", stats.Portal)
	}
	return stats, nil
}

func (svc *service) platform(ctx context.Context, schoolID string, stats *Stats) error {
	active := true
	var err error
	if stats.Counts["schools"], err = svc.schools.CountSchools(ctx, &school.QueryFilter{}); err != nil {
		return err
	}
	if stats.Counts["active_schools"], err = svc.schools.CountSchools(ctx, &school.QueryFilter{IsActive: &active}); err != nil {
		return err
	}
	stats.Counts["users"], err = svc.users.CountUsers(ctx, &user.QueryFilter{SchoolID: schoolID})
	return err
}

func (svc *service) admin(ctx context.Context, schoolID string, stats *Stats) error {
	var err error
	if stats.Counts["students"], err = svc.academics.CountStudents(ctx, &academic.StudentFilter{SchoolID: schoolID, Status: academic.StatusActive}); err != nil {
		return err
	}
	if stats.Counts["teachers"], err = svc.users.CountUsers(ctx, &user.QueryFilter{SchoolID: schoolID, Roles: []string{user.RoleTeacher}}); err != nil {
		return err
	}
	if stats.Counts["classes"], err = svc.academics.CountClasses(ctx, &academic.ClassFilter{SchoolID: schoolID}); err != nil {
		return err
	}
	counts, err := svc.grades.CountGradesByStatus(ctx, &grade.Filter{SchoolID: schoolID, Statuses: []string{grade.StatusPendingApproval}})
	if err != nil {
		return err
	}
	stats.Counts["grades_pending_approval"] = counts[grade.StatusPendingApproval]
	return svc.collection(ctx, schoolID, stats)
}

func (svc *service) finance(ctx context.Context, schoolID string, stats *Stats) error {
	if err := svc.collection(ctx, schoolID, stats); err != nil {
		return err
	}
	now := time.Now().UTC()
	payments, err := svc.fees.Payments(ctx, &fee.PaymentFilter{SchoolID: schoolID, From: core.NewDate(now).Time, To: now}, nil)
	if err != nil {
		return err
	}
	var total float64
	for _, p := range payments {
		total += p.Amount
	}
	stats.Counts["payments_today"] = len(payments)
	stats.Amounts = map[string]float64{"collected_today": fee.Round(total)}
	return nil
}

func (svc *service) collection(ctx context.Context, schoolID string, stats *Stats) error {
	sum, err := svc.fees.CollectionSummary(ctx, schoolID, "", "")
	if err != nil {
		return err
	}
	stats.Fees = &sum
	return nil
}

func (svc *service) teacher(ctx context.Context, schoolID string, usr user.User, stats *Stats) error {
	var err error
	if stats.Counts["classes"], err = svc.academics.CountClasses(ctx, &academic.ClassFilter{SchoolID: schoolID, TeacherID: usr.ID}); err != nil {
		return err
	}
	subjects, err := svc.academics.QuerySubjects(ctx, &academic.SubjectFilter{SchoolID: schoolID, TeacherID: usr.ID}, nil)
	if err != nil {
		return err
	}
	stats.Counts["subjects"] = len(subjects)
	stats.Counts["draft_grades"], stats.Counts["rejected_grades"] = 0, 0
	if len(subjects) == 0 {
		return nil
	}
	ids := make([]string, len(subjects))
	for i, sub := range subjects {
		ids[i] = sub.ID
	}
	counts, err := svc.grades.CountGradesByStatus(ctx, &grade.Filter{
		SchoolID:   schoolID,
		SubjectIDs: ids,
		Statuses:   []string{grade.StatusDraft, grade.StatusRejected},
	})
	if err != nil {
		return err
	}
	stats.Counts["draft_grades"] = counts[grade.StatusDraft]
	stats.Counts["rejected_grades"] = counts[grade.StatusRejected]
	return nil
}

func (svc *service) parent(ctx context.Context, schoolID string, usr user.User, stats *Stats) error {
	children, err := svc.academics.QueryStudents(ctx, &academic.StudentFilter{SchoolID: schoolID, ParentID: usr.ID}, nil)
	if err != nil {
		return err
	}
	stats.Counts["children"] = len(children)
	stats.Counts["released_grades"] = 0
	stats.Amounts = map[string]float64{"balance": 0}
	if len(children) == 0 {
		return nil
	}
	ids := make([]string, len(children))
	for i, std := range children {
		ids[i] = std.ID
	}

	counts, err := svc.grades.CountGradesByStatus(ctx, &grade.Filter{SchoolID: schoolID, StudentIDs: ids, Statuses: []string{grade.StatusReleased}})
	if err != nil {
		return err
	}
	stats.Counts["released_grades"] = counts[grade.StatusReleased]

	balances, err := svc.fees.Balances(ctx, &fee.StudentFeeFilter{SchoolID: schoolID, StudentIDs: ids})
	if err != nil {
		return err
	}
	var balance float64
	for _, b := range balances {
		balance += b.Balance
	}
	stats.Amounts["balance"] = fee.Round(balance)
	return nil
}
