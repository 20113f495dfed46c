package inmemdb

import (
	"context"
	"strings"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/fee"
)

var (
	structureComparators = comparators[fee.Structure]{
		"name":          func(a, b fee.Structure) int { return cmpFold(a.Name, b.Name) },
		"term":          func(a, b fee.Structure) int { return strings.Compare(a.Term, b.Term) },
		"academic_year": func(a, b fee.Structure) int { return strings.Compare(a.AcademicYear, b.AcademicYear) },
		"amount":        func(a, b fee.Structure) int { return cmpFloat(a.Amount, b.Amount) },
		"due_date":      func(a, b fee.Structure) int { return cmpTime(a.DueDate.Time, b.DueDate.Time) },
		"created_at":    func(a, b fee.Structure) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
	}
	studentFeeComparators = comparators[fee.StudentFee]{
		"amount":     func(a, b fee.StudentFee) int { return cmpFloat(a.Amount, b.Amount) },
		"paid":       func(a, b fee.StudentFee) int { return cmpFloat(a.Paid, b.Paid) },
		"balance":    func(a, b fee.StudentFee) int { return cmpFloat(a.Balance, b.Balance) },
		"status":     func(a, b fee.StudentFee) int { return strings.Compare(a.Status, b.Status) },
		"created_at": func(a, b fee.StudentFee) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
	}
	paymentComparators = comparators[fee.Payment]{
		"amount":     func(a, b fee.Payment) int { return cmpFloat(a.Amount, b.Amount) },
		"method":     func(a, b fee.Payment) int { return strings.Compare(a.Method, b.Method) },
		"paid_at":    func(a, b fee.Payment) int { return cmpTime(a.PaidAt, b.PaidAt) },
		"created_at": func(a, b fee.Payment) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
	}
)

type feeRepository struct {
	structures  *table[fee.Structure]
	studentFees *table[fee.StudentFee]
	payments    *table[fee.Payment]
}

var _ fee.Repository = (*feeRepository)(nil)

func NewFeeRepository(db *DB) fee.Repository {
	return &feeRepository{structures: db.feeStructure, studentFees: db.studentFee, payments: db.payment}
}

// Structures

func (repo *feeRepository) structureTaken(s fee.Structure) bool {
	_, ok := repo.structures.find(func(o fee.Structure) bool {
		return o.ID != s.ID && o.ClassID == s.ClassID && o.Name == s.Name &&
			o.Term == s.Term && o.AcademicYear == s.AcademicYear
	})
	return ok
}

func (repo *feeRepository) CreateStructure(_ context.Context, s fee.Structure, _ ...core.DBExecutor) (fee.Structure, error) {
	repo.structures.Lock()
	defer repo.structures.Unlock()

	if repo.structureTaken(s) {
		return fee.Structure{}, fee.ErrStructureExists
	}
	s.ID = core.NewID()
	repo.structures.insert(s.ID, s)
	return s, nil
}

func (repo *feeRepository) QueryStructures(_ context.Context, filter *fee.StructureFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]fee.Structure, error) {
	repo.structures.RLock()
	defer repo.structures.RUnlock()

	structures := repo.structures.filter(func(s fee.Structure) bool {
		if filter == nil {
			return true
		}
		return eq(filter.SchoolID, s.SchoolID) && in(filter.IDs, s.ID) && eq(filter.ClassID, s.ClassID) &&
			eq(filter.Term, s.Term) && eq(filter.AcademicYear, s.AcademicYear)
	})
	sortRows(structures, ordering, structureComparators, desc("academic_year"), asc("term"), asc("name"))
	return structures, nil
}

func (repo *feeRepository) GetStructure(_ context.Context, schoolID, id string, _ ...core.DBExecutor) (fee.Structure, error) {
	repo.structures.RLock()
	defer repo.structures.RUnlock()

	if s, ok := repo.structures.get(id); ok && s.SchoolID == schoolID {
		return s, nil
	}
	return fee.Structure{}, fee.ErrStructureNotFound
}

func (repo *feeRepository) UpdateStructure(_ context.Context, s fee.Structure, _ ...core.DBExecutor) (fee.Structure, error) {
	repo.structures.Lock()
	defer repo.structures.Unlock()

	if orig, ok := repo.structures.get(s.ID); !ok || orig.SchoolID != s.SchoolID {
		return fee.Structure{}, fee.ErrStructureNotFound
	}
	if repo.structureTaken(s) {
		return fee.Structure{}, fee.ErrStructureExists
	}
	repo.structures.set(s.ID, s)
	return s, nil
}

func (repo *feeRepository) DeleteStructure(_ context.Context, schoolID, id string, _ ...core.DBExecutor) error {
	repo.structures.Lock()
	defer repo.structures.Unlock()

	if s, ok := repo.structures.get(id); !ok || s.SchoolID != schoolID {
		return fee.ErrStructureNotFound
	}
	repo.structures.remove(id)
	return nil
}

// Student fees

func (repo *feeRepository) CreateStudentFee(_ context.Context, sf fee.StudentFee, _ ...core.DBExecutor) (fee.StudentFee, error) {
	repo.studentFees.Lock()
	defer repo.studentFees.Unlock()

	if _, taken := repo.studentFees.find(func(o fee.StudentFee) bool {
		return o.StudentID == sf.StudentID && o.StructureID == sf.StructureID
	}); taken {
		return fee.StudentFee{}, errDuplicateKey("student_fees")
	}
	sf.ID = core.NewID()
	repo.studentFees.insert(sf.ID, sf)
	return sf, nil
}

func (repo *feeRepository) QueryStudentFees(_ context.Context, filter *fee.StudentFeeFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]fee.StudentFee, error) {
	repo.studentFees.RLock()
	defer repo.studentFees.RUnlock()

	fees := repo.studentFees.filter(func(sf fee.StudentFee) bool {
		if filter == nil {
			return true
		}
		return eq(filter.SchoolID, sf.SchoolID) && in(filter.IDs, sf.ID) &&
			eq(filter.StudentID, sf.StudentID) && in(filter.StudentIDs, sf.StudentID) &&
			eq(filter.StructureID, sf.StructureID) && in(filter.StructureIDs, sf.StructureID) &&
			in(filter.Statuses, sf.Status)
	})
	sortRows(fees, ordering, studentFeeComparators, asc("created_at"))
	return fees, nil
}

// LockStudentFee reads the fee like a plain select; callers serialize payments without a transaction.
func (repo *feeRepository) LockStudentFee(_ context.Context, schoolID, id string, _ ...core.DBExecutor) (fee.StudentFee, error) {
	repo.studentFees.RLock()
	defer repo.studentFees.RUnlock()

	if sf, ok := repo.studentFees.get(id); ok && sf.SchoolID == schoolID {
		return sf, nil
	}
	return fee.StudentFee{}, fee.ErrStudentFeeNotFound
}

func (repo *feeRepository) UpdateStudentFee(_ context.Context, sf fee.StudentFee, _ ...core.DBExecutor) (fee.StudentFee, error) {
	repo.studentFees.Lock()
	defer repo.studentFees.Unlock()

	if orig, ok := repo.studentFees.get(sf.ID); !ok || orig.SchoolID != sf.SchoolID {
		return fee.StudentFee{}, fee.ErrStudentFeeNotFound
	}
	repo.studentFees.set(sf.ID, sf)
	return sf, nil
}

// Payments

func (repo *feeRepository) CreatePayment(_ context.Context, p fee.Payment, _ ...core.DBExecutor) (fee.Payment, error) {
	repo.payments.Lock()
	defer repo.payments.Unlock()

	if p.Reference != "" {
		if _, taken := repo.payments.find(func(o fee.Payment) bool {
			return o.SchoolID == p.SchoolID && o.Reference == p.Reference
		}); taken {
			return fee.Payment{}, fee.ErrReferenceExists
		}
	}
	p.ID = core.NewID()
	repo.payments.insert(p.ID, p)
	return p, nil
}

func (repo *feeRepository) QueryPayments(_ context.Context, filter *fee.PaymentFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]fee.Payment, error) {
	repo.payments.RLock()
	defer repo.payments.RUnlock()

	payments := repo.payments.filter(func(p fee.Payment) bool {
		if filter == nil {
			return true
		}
		if !filter.From.IsZero() && p.PaidAt.Before(filter.From) {
			return false
		}
		if !filter.To.IsZero() && p.PaidAt.After(filter.To) {
			return false
		}
		return eq(filter.SchoolID, p.SchoolID) && eq(filter.StudentID, p.StudentID) &&
			in(filter.StudentIDs, p.StudentID) && eq(filter.StudentFeeID, p.StudentFeeID) &&
			eq(filter.Method, p.Method)
	})
	sortRows(payments, ordering, paymentComparators, desc("paid_at"))
	return payments, nil
}
