package fee

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/academic"
	"github.com/edufam/edufam/core/audit"
	"github.com/edufam/edufam/core/user"
)

var (
	// errors
	ErrStructureNotFound  = errors.New("fee structure not found")
	ErrStudentFeeNotFound = errors.New("student fee not found")
	ErrReferenceExists    = errors.New("a payment with this reference already exists")
	ErrStructureExists    = errors.New("a fee structure with this name already exists for this class and term")
)

type (
	Repository interface {
		CreateStructure(ctx context.Context, s Structure, exec ...core.DBExecutor) (Structure, error)
		QueryStructures(ctx context.Context, filter *StructureFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Structure, error)
		GetStructure(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (Structure, error)
		UpdateStructure(ctx context.Context, s Structure, exec ...core.DBExecutor) (Structure, error)
		DeleteStructure(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) error

		CreateStudentFee(ctx context.Context, sf StudentFee, exec ...core.DBExecutor) (StudentFee, error)
		QueryStudentFees(ctx context.Context, filter *StudentFeeFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]StudentFee, error)
		// LockStudentFee loads a student fee, locking its row until the end of the transaction.
		LockStudentFee(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (StudentFee, error)
		UpdateStudentFee(ctx context.Context, sf StudentFee, exec ...core.DBExecutor) (StudentFee, error)

		CreatePayment(ctx context.Context, p Payment, exec ...core.DBExecutor) (Payment, error)
		QueryPayments(ctx context.Context, filter *PaymentFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Payment, error)
	}

	Service interface {
		CreateStructure(ctx context.Context, schoolID string, ns NewStructure) (Structure, error)
		QueryStructures(ctx context.Context, filter *StructureFilter, ordering []core.DBOrdering) ([]Structure, error)
		GetStructure(ctx context.Context, schoolID, id string) (Structure, error)
		UpdateStructure(ctx context.Context, s Structure, us UpdateStructure) (Structure, error)
		DeleteStructure(ctx context.Context, s Structure) error
		// Assign bills s to every active student of its class not billed yet and returns how many were billed.
		Assign(ctx context.Context, s Structure) (int, error)

		RecordPayment(ctx context.Context, schoolID string, actor user.User, np NewPayment) (Payment, StudentFee, error)
		Payments(ctx context.Context, filter *PaymentFilter, ordering []core.DBOrdering) ([]Payment, error)
		StudentFees(ctx context.Context, filter *StudentFeeFilter) ([]StudentFee, error)
		Balances(ctx context.Context, filter *StudentFeeFilter) ([]Balance, error)
		CollectionSummary(ctx context.Context, schoolID, term, academicYear string) (CollectionSummary, error)
	}

	service struct {
		db        core.DB
		repo      Repository
		academics academic.Repository
		audit     audit.Logger

		// payMu serializes payments when there is no database transaction to lock the fee row.
		payMu sync.Mutex
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, academics academic.Repository, auditLog audit.Logger) Service {
	return &service{db: db, repo: repo, academics: academics, audit: auditLog}
}

func (svc *service) CreateStructure(ctx context.Context, schoolID string, ns NewStructure) (Structure, error) {
	if _, err := svc.academics.GetClass(ctx, schoolID, ns.ClassID); err != nil {
		if errors.Cause(err) == academic.ErrClassNotFound {
			return Structure{}, core.NewFieldError("class_id", "unknown class")
		}
		return Structure{}, errors.Wrap(err, "finding class")
	}

	now := time.Now().UTC()
	s, err := svc.repo.CreateStructure(ctx, Structure{
		SchoolID:     schoolID,
		ClassID:      ns.ClassID,
		Name:         ns.Name,
		Term:         ns.Term,
		AcademicYear: ns.AcademicYear,
		Amount:       ns.Amount,
		DueDate:      ns.DueDate,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Cause(err) == ErrStructureExists {
			return Structure{}, core.NewFieldError("name", ErrStructureExists.Error())
		}
		return Structure{}, errors.Wrap(err, "creating fee structure")
	}
	svc.audit.Log(ctx, audit.Entry{SchoolID: schoolID, Action: "fees.structures.create", Resource: "fee_structure", ResourceID: s.ID})
	return s, nil
}

func (svc *service) QueryStructures(ctx context.Context, filter *StructureFilter, ordering []core.DBOrdering) ([]Structure, error) {
	return svc.repo.QueryStructures(ctx, filter, ordering)
}

func (svc *service) GetStructure(ctx context.Context, schoolID, id string) (Structure, error) {
	return svc.repo.GetStructure(ctx, schoolID, id)
}

func (svc *service) UpdateStructure(ctx context.Context, s Structure, us UpdateStructure) (Structure, error) {
	if us.Name != "" {
		s.Name = us.Name
	}
	if us.Amount != nil {
		s.Amount = *us.Amount
	}
	if !us.DueDate.IsZero() {
		s.DueDate = us.DueDate
	}
	s.UpdatedAt = time.Now().UTC()

	s, err := svc.repo.UpdateStructure(ctx, s)
	if err != nil {
		if errors.Cause(err) == ErrStructureExists {
			return Structure{}, core.NewFieldError("name", ErrStructureExists.Error())
		}
		return Structure{}, err
	}
	svc.audit.Log(ctx, audit.Entry{SchoolID: s.SchoolID, Action: "fees.structures.update", Resource: "fee_structure", ResourceID: s.ID})
	return s, nil
}

func (svc *service) DeleteStructure(ctx context.Context, s Structure) error {
	if err := svc.repo.DeleteStructure(ctx, s.SchoolID, s.ID); err != nil {
		return err
	}
	svc.audit.Log(ctx, audit.Entry{SchoolID: s.SchoolID, Action: "fees.structures.delete", Resource: "fee_structure", ResourceID: s.ID})
	return nil
}

func (svc *service) Assign(ctx context.Context, s Structure) (int, error) {
	var assigned int
	err := core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
		students, err := svc.academics.QueryStudents(ctx, &academic.StudentFilter{
			SchoolID: s.SchoolID,
			ClassID:  s.ClassID,
			Status:   academic.StatusActive,
		}, nil, core.Execs(exec)...)
		if err != nil {
			return errors.Wrap(err, "querying class students")
		}
		billed, err := svc.repo.QueryStudentFees(ctx, &StudentFeeFilter{SchoolID: s.SchoolID, StructureID: s.ID}, nil, core.Execs(exec)...)
		if err != nil {
			return errors.Wrap(err, "querying student fees")
		}
		done := make(map[string]bool, len(billed))
		for _, sf := range billed {
			done[sf.StudentID] = true
		}

		now := time.Now().UTC()
		for _, std := range students {
			if done[std.ID] {
				continue
			}
			sf := StudentFee{
				SchoolID:    s.SchoolID,
				StudentID:   std.ID,
				StructureID: s.ID,
				Amount:      s.Amount,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			sf.Refresh()
			if _, err := svc.repo.CreateStudentFee(ctx, sf, core.Execs(exec)...); err != nil {
				return errors.Wrap(err, "creating student fee")
			}
			assigned++
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "assigning fee structure")
	}

	svc.audit.Log(ctx, audit.Entry{
		SchoolID:   s.SchoolID,
		Action:     "fees.structures.assign",
		Resource:   "fee_structure",
		ResourceID: s.ID,
		Metadata:   map[string]interface{}{"assigned": assigned},
	})
	return assigned, nil
}

// RecordPayment stores a payment and credits it to its student fee in one transaction.
func (svc *service) RecordPayment(ctx context.Context, schoolID string, actor user.User, np NewPayment) (Payment, StudentFee, error) {
	if np.Amount <= 0 {
		return Payment{}, StudentFee{}, core.NewFieldError("amount", "amount must be greater than 0")
	}

	if svc.db == nil {
		svc.payMu.Lock()
		defer svc.payMu.Unlock()
	}

	var (
		p  Payment
		sf StudentFee
	)
	err := core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
		var err error
		sf, err = svc.repo.LockStudentFee(ctx, schoolID, np.StudentFeeID, core.Execs(exec)...)
		if err != nil {
			if errors.Cause(err) == ErrStudentFeeNotFound {
				return core.NewFieldError("student_fee_id", "unknown student fee")
			}
			return errors.Wrap(err, "finding student fee")
		}
		if np.Amount > sf.Balance {
			return core.NewFieldError("amount", fmt.Sprintf("amount exceeds the outstanding balance of %.2f", sf.Balance))
		}

		now := time.Now().UTC()
		paidAt := np.PaidAt
		if paidAt.IsZero() {
			paidAt = now
		}
		p, err = svc.repo.CreatePayment(ctx, Payment{
			SchoolID:     schoolID,
			StudentFeeID: sf.ID,
			StudentID:    sf.StudentID,
			Amount:       np.Amount,
			Method:       np.Method,
			Reference:    np.Reference,
			ReceivedBy:   actor.ID,
			PaidAt:       paidAt.UTC(),
			CreatedAt:    now,
		}, core.Execs(exec)...)
		if err != nil {
			if errors.Cause(err) == ErrReferenceExists {
				return core.NewFieldError("reference", ErrReferenceExists.Error())
			}
			return errors.Wrap(err, "creating payment")
		}

		sf.AddPayment(np.Amount)
		sf.UpdatedAt = now
		if sf, err = svc.repo.UpdateStudentFee(ctx, sf, core.Execs(exec)...); err != nil {
			return errors.Wrap(err, "updating student fee")
		}
		return nil
	})
	if err != nil {
		if _, ok := errors.Cause(err).(*core.ValidationError); ok {
			return Payment{}, StudentFee{}, errors.Cause(err)
		}
		return Payment{}, StudentFee{}, errors.Wrap(err, "recording payment")
	}

	svc.audit.Log(ctx, audit.Entry{
		SchoolID:   schoolID,
		ActorID:    actor.ID,
		Action:     "fees.payments.create",
		Resource:   "payment",
		ResourceID: p.ID,
		Metadata:   map[string]interface{}{"student_fee_id": sf.ID, "amount": p.Amount, "method": p.Method},
	})
	return p, sf, nil
}

func (svc *service) Payments(ctx context.Context, filter *PaymentFilter, ordering []core.DBOrdering) ([]Payment, error) {
	return svc.repo.QueryPayments(ctx, filter, ordering)
}

func (svc *service) StudentFees(ctx context.Context, filter *StudentFeeFilter) ([]StudentFee, error) {
	return svc.repo.QueryStudentFees(ctx, filter, nil)
}

func (svc *service) Balances(ctx context.Context, filter *StudentFeeFilter) ([]Balance, error) {
	fees, err := svc.repo.QueryStudentFees(ctx, filter, []core.DBOrdering{{Field: "created_at", Ascending: true}})
	if err != nil {
		return nil, errors.Wrap(err, "querying student fees")
	}
	return Balances(fees), nil
}

func (svc *service) CollectionSummary(ctx context.Context, schoolID, term, academicYear string) (CollectionSummary, error) {
	structures, err := svc.repo.QueryStructures(ctx, &StructureFilter{SchoolID: schoolID, Term: term, AcademicYear: academicYear}, nil)
	if err != nil {
		return CollectionSummary{}, errors.Wrap(err, "querying fee structures")
	}
	if len(structures) == 0 {
		return Summarize(term, academicYear, nil), nil
	}
	ids := make([]string, len(structures))
	for i, s := range structures {
		ids[i] = s.ID
	}
	fees, err := svc.repo.QueryStudentFees(ctx, &StudentFeeFilter{SchoolID: schoolID, StructureIDs: ids}, nil)
	if err != nil {
		return CollectionSummary{}, errors.Wrap(err, "querying student fees")
	}
	return Summarize(term, academicYear, fees), nil
}
