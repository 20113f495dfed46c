package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/fee"
)

type (
	structureRow struct {
		ID           string    `db:"id"`
		SchoolID     string    `db:"school_id"`
		ClassID      string    `db:"class_id"`
		Name         string    `db:"name"`
		Term         string    `db:"term"`
		AcademicYear string    `db:"academic_year"`
		Amount       float64   `db:"amount"`
		DueDate      core.Date `db:"due_date"`
		CreatedAt    time.Time `db:"created_at"`
		UpdatedAt    time.Time `db:"updated_at"`
	}

	studentFeeRow struct {
		ID          string    `db:"id"`
		SchoolID    string    `db:"school_id"`
		StudentID   string    `db:"student_id"`
		StructureID string    `db:"structure_id"`
		Amount      float64   `db:"amount"`
		Paid        float64   `db:"paid"`
		Balance     float64   `db:"balance"`
		Status      string    `db:"status"`
		CreatedAt   time.Time `db:"created_at"`
		UpdatedAt   time.Time `db:"updated_at"`
	}

	paymentRow struct {
		ID           string      `db:"id"`
		SchoolID     string      `db:"school_id"`
		StudentFeeID string      `db:"student_fee_id"`
		StudentID    string      `db:"student_id"`
		Amount       float64     `db:"amount"`
		Method       string      `db:"method"`
		Reference    string      `db:"reference"`
		ReceivedBy   null.String `db:"received_by"`
		PaidAt       time.Time   `db:"paid_at"`
		CreatedAt    time.Time   `db:"created_at"`
	}
)

var (
	structureOrderFields  = []string{"name", "term", "academic_year", "amount", "due_date", "created_at"}
	studentFeeOrderFields = []string{"amount", "paid", "balance", "status", "created_at"}
	paymentOrderFields    = []string{"amount", "method", "paid_at", "created_at"}
)

func toStructureRow(s fee.Structure) structureRow {
	return structureRow{
		ID:           s.ID,
		SchoolID:     s.SchoolID,
		ClassID:      s.ClassID,
		Name:         s.Name,
		Term:         s.Term,
		AcademicYear: s.AcademicYear,
		Amount:       s.Amount,
		DueDate:      s.DueDate,
		CreatedAt:    s.CreatedAt.UTC(),
		UpdatedAt:    s.UpdatedAt.UTC(),
	}
}

func (row structureRow) structure() fee.Structure {
	return fee.Structure{
		ID:           row.ID,
		SchoolID:     row.SchoolID,
		ClassID:      row.ClassID,
		Name:         row.Name,
		Term:         row.Term,
		AcademicYear: row.AcademicYear,
		Amount:       row.Amount,
		DueDate:      row.DueDate,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

func toStudentFeeRow(sf fee.StudentFee) studentFeeRow {
	return studentFeeRow{
		ID:          sf.ID,
		SchoolID:    sf.SchoolID,
		StudentID:   sf.StudentID,
		StructureID: sf.StructureID,
		Amount:      sf.Amount,
		Paid:        sf.Paid,
		Balance:     sf.Balance,
		Status:      sf.Status,
		CreatedAt:   sf.CreatedAt.UTC(),
		UpdatedAt:   sf.UpdatedAt.UTC(),
	}
}

func (row studentFeeRow) studentFee() fee.StudentFee {
	return fee.StudentFee{
		ID:          row.ID,
		SchoolID:    row.SchoolID,
		StudentID:   row.StudentID,
		StructureID: row.StructureID,
		Amount:      row.Amount,
		Paid:        row.Paid,
		Balance:     row.Balance,
		Status:      row.Status,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

func toPaymentRow(p fee.Payment) paymentRow {
	return paymentRow{
		ID:           p.ID,
		SchoolID:     p.SchoolID,
		StudentFeeID: p.StudentFeeID,
		StudentID:    p.StudentID,
		Amount:       p.Amount,
		Method:       p.Method,
		Reference:    p.Reference,
		ReceivedBy:   nullID(p.ReceivedBy),
		PaidAt:       p.PaidAt.UTC(),
		CreatedAt:    p.CreatedAt.UTC(),
	}
}

func (row paymentRow) payment() fee.Payment {
	return fee.Payment{
		ID:           row.ID,
		SchoolID:     row.SchoolID,
		StudentFeeID: row.StudentFeeID,
		StudentID:    row.StudentID,
		Amount:       row.Amount,
		Method:       row.Method,
		Reference:    row.Reference,
		ReceivedBy:   row.ReceivedBy.String,
		PaidAt:       row.PaidAt.UTC(),
		CreatedAt:    row.CreatedAt.UTC(),
	}
}

type feeRepository struct{ repo }

var _ fee.Repository = (*feeRepository)(nil)

func NewFeeRepository(exec core.DBExecutor) *feeRepository {
	return &feeRepository{repo{exec: exec}}
}

// Structures

func structureExistsErr(err error) error {
	if _, ok := uniqueConstraint(err); ok {
		return fee.ErrStructureExists
	}
	return err
}

func (r feeRepository) CreateStructure(ctx context.Context, s fee.Structure, exec ...core.DBExecutor) (fee.Structure, error) {
	s.ID = core.NewID()
	var row structureRow
	q := `INSERT INTO fee_structures (id, school_id, class_id, name, term, academic_year, amount, due_date, created_at, updated_at)
		VALUES (:id, :school_id, :class_id, :name, :term, :academic_year, :amount, :due_date, :created_at, :updated_at)
		RETURNING *`
	if err := r.namedGet(ctx, exec, &row, q, toStructureRow(s)); err != nil {
		return fee.Structure{}, errors.Wrap(structureExistsErr(err), "inserting fee structure")
	}
	return row.structure(), nil
}

func (r feeRepository) QueryStructures(ctx context.Context, filter *fee.StructureFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]fee.Structure, error) {
	w := &where{}
	if filter != nil {
		w.eq("school_id", filter.SchoolID)
		w.any("id::text", filter.IDs)
		w.eq("class_id", filter.ClassID)
		w.eq("term", filter.Term)
		w.eq("academic_year", filter.AcademicYear)
	}
	var rows []structureRow
	q := "SELECT * FROM fee_structures" + w.String() + orderBy(ordering, structureOrderFields, "academic_year DESC, term ASC, name ASC")
	if err := r.selectAll(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying fee structures")
	}
	structures := make([]fee.Structure, 0, len(rows))
	for _, row := range rows {
		structures = append(structures, row.structure())
	}
	return structures, nil
}

func (r feeRepository) GetStructure(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (fee.Structure, error) {
	if !core.IsID(id) {
		return fee.Structure{}, fee.ErrStructureNotFound
	}
	var row structureRow
	if err := r.get(ctx, exec, &row, "SELECT * FROM fee_structures WHERE school_id = ? AND id = ?", schoolID, id); err != nil {
		return fee.Structure{}, trapNoRowsErr(err, fee.ErrStructureNotFound, "finding fee structure")
	}
	return row.structure(), nil
}

func (r feeRepository) UpdateStructure(ctx context.Context, s fee.Structure, exec ...core.DBExecutor) (fee.Structure, error) {
	var row structureRow
	q := `UPDATE fee_structures SET name = :name, amount = :amount, due_date = :due_date, updated_at = :updated_at
		WHERE school_id = :school_id AND id = :id RETURNING *`
	if err := r.namedGet(ctx, exec, &row, q, toStructureRow(s)); err != nil {
		return fee.Structure{}, trapNoRowsErr(structureExistsErr(err), fee.ErrStructureNotFound, "updating fee structure")
	}
	return row.structure(), nil
}

func (r feeRepository) DeleteStructure(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) error {
	if !core.IsID(id) {
		return fee.ErrStructureNotFound
	}
	n, err := r.execute(ctx, exec, "DELETE FROM fee_structures WHERE school_id = ? AND id = ?", schoolID, id)
	if err != nil {
		return errors.Wrap(err, "deleting fee structure")
	}
	if n == 0 {
		return fee.ErrStructureNotFound
	}
	return nil
}

// Student fees

func (r feeRepository) CreateStudentFee(ctx context.Context, sf fee.StudentFee, exec ...core.DBExecutor) (fee.StudentFee, error) {
	sf.ID = core.NewID()
	var row studentFeeRow
	q := `INSERT INTO student_fees (id, school_id, student_id, structure_id, amount, paid, balance, status, created_at, updated_at)
		VALUES (:id, :school_id, :student_id, :structure_id, :amount, :paid, :balance, :status, :created_at, :updated_at)
		RETURNING *`
	if err := r.namedGet(ctx, exec, &row, q, toStudentFeeRow(sf)); err != nil {
		return fee.StudentFee{}, errors.Wrap(err, "inserting student fee")
	}
	return row.studentFee(), nil
}

func (r feeRepository) QueryStudentFees(ctx context.Context, filter *fee.StudentFeeFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]fee.StudentFee, error) {
	w := &where{}
	if filter != nil {
		w.eq("school_id", filter.SchoolID)
		w.any("id::text", filter.IDs)
		w.eq("student_id", filter.StudentID)
		w.any("student_id::text", filter.StudentIDs)
		w.eq("structure_id", filter.StructureID)
		w.any("structure_id::text", filter.StructureIDs)
		w.any("status", filter.Statuses)
	}
	var rows []studentFeeRow
	q := "SELECT * FROM student_fees" + w.String() + orderBy(ordering, studentFeeOrderFields, "created_at ASC")
	if err := r.selectAll(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying student fees")
	}
	fees := make([]fee.StudentFee, 0, len(rows))
	for _, row := range rows {
		fees = append(fees, row.studentFee())
	}
	return fees, nil
}

func (r feeRepository) LockStudentFee(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (fee.StudentFee, error) {
	if !core.IsID(id) {
		return fee.StudentFee{}, fee.ErrStudentFeeNotFound
	}
	var row studentFeeRow
	q := "SELECT * FROM student_fees WHERE school_id = ? AND id = ? FOR UPDATE"
	if err := r.get(ctx, exec, &row, q, schoolID, id); err != nil {
		return fee.StudentFee{}, trapNoRowsErr(err, fee.ErrStudentFeeNotFound, "locking student fee")
	}
	return row.studentFee(), nil
}

func (r feeRepository) UpdateStudentFee(ctx context.Context, sf fee.StudentFee, exec ...core.DBExecutor) (fee.StudentFee, error) {
	var row studentFeeRow
	q := `UPDATE student_fees SET amount = :amount, paid = :paid, balance = :balance, status = :status, updated_at = :updated_at
		WHERE school_id = :school_id AND id = :id RETURNING *`
	if err := r.namedGet(ctx, exec, &row, q, toStudentFeeRow(sf)); err != nil {
		return fee.StudentFee{}, trapNoRowsErr(err, fee.ErrStudentFeeNotFound, "updating student fee")
	}
	return row.studentFee(), nil
}

// Payments

func (r feeRepository) CreatePayment(ctx context.Context, p fee.Payment, exec ...core.DBExecutor) (fee.Payment, error) {
	p.ID = core.NewID()
	var row paymentRow
	q := `INSERT INTO payments (id, school_id, student_fee_id, student_id, amount, method, reference, received_by, paid_at, created_at)
		VALUES (:id, :school_id, :student_fee_id, :student_id, :amount, :method, :reference, :received_by, :paid_at, :created_at)
		RETURNING *`
	if err := r.namedGet(ctx, exec, &row, q, toPaymentRow(p)); err != nil {
		if constraint, ok := uniqueConstraint(err); ok && strings.Contains(constraint, "reference") {
			err = fee.ErrReferenceExists
		}
		return fee.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return row.payment(), nil
}

func (r feeRepository) QueryPayments(ctx context.Context, filter *fee.PaymentFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]fee.Payment, error) {
	w := &where{}
	if filter != nil {
		w.eq("school_id", filter.SchoolID)
		w.eq("student_id", filter.StudentID)
		w.any("student_id::text", filter.StudentIDs)
		w.eq("student_fee_id", filter.StudentFeeID)
		w.eq("method", filter.Method)
		if !filter.From.IsZero() {
			w.add("paid_at >= ?", filter.From.UTC())
		}
		if !filter.To.IsZero() {
			w.add("paid_at <= ?", filter.To.UTC())
		}
	}
	var rows []paymentRow
	q := "SELECT * FROM payments" + w.String() + orderBy(ordering, paymentOrderFields, "paid_at DESC")
	if err := r.selectAll(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	payments := make([]fee.Payment, 0, len(rows))
	for _, row := range rows {
		payments = append(payments, row.payment())
	}
	return payments, nil
}
