package fee

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/edufam/edufam/core"
)

// Student fee statuses
const (
	StatusUnpaid  = "unpaid"
	StatusPartial = "partial"
	StatusPaid    = "paid"
)

// Payment methods
const (
	MethodCash  = "cash"
	MethodMpesa = "mpesa"
	MethodBank  = "bank"
	MethodCard  = "card"
)

// Structure is a fee billed to every student of a class for a term.
type Structure struct {
	ID           string    `json:"id"`
	SchoolID     string    `json:"school_id"`
	ClassID      string    `json:"class_id"`
	Name         string    `json:"name"`
	Term         string    `json:"term"`
	AcademicYear string    `json:"academic_year"`
	Amount       float64   `json:"amount"`
	DueDate      core.Date `json:"due_date"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type NewStructure struct {
	ClassID      string    `json:"class_id" validate:"required,uuid"`
	Name         string    `json:"name" validate:"required,max=100"`
	Term         string    `json:"term" validate:"required,oneof=term1 term2 term3"`
	AcademicYear string    `json:"academic_year" validate:"required,max=20"`
	Amount       float64   `json:"amount" validate:"gt=0"`
	DueDate      core.Date `json:"due_date"`
}

func (ns *NewStructure) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Term = core.CleanString(ns.Term, true /* lower */)
	ns.AcademicYear = core.CleanString(ns.AcademicYear)
	ns.Amount = Round(ns.Amount)
	return validate.Struct(ns)
}

type UpdateStructure struct {
	Name    string    `json:"name" validate:"omitempty,max=100"`
	Amount  *float64  `json:"amount" validate:"omitempty,gt=0"`
	DueDate core.Date `json:"due_date"`
}

func (us *UpdateStructure) Validate(validate *validator.Validate) error {
	us.Name = core.CleanString(us.Name)
	if us.Amount != nil {
		amount := Round(*us.Amount)
		us.Amount = &amount
	}
	return validate.Struct(us)
}

type StructureFilter struct {
	SchoolID     string
	IDs          []string
	ClassID      string
	Term         string
	AcademicYear string
}

// StudentFee is a structure billed to a student.
type StudentFee struct {
	ID          string    `json:"id"`
	SchoolID    string    `json:"school_id"`
	StudentID   string    `json:"student_id"`
	StructureID string    `json:"structure_id"`
	Amount      float64   `json:"amount"`
	Paid        float64   `json:"paid"`
	Balance     float64   `json:"balance"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AddPayment bumps Paid by amount and recomputes the balance & status.
func (sf *StudentFee) AddPayment(amount float64) {
	sf.Paid = Round(sf.Paid + amount)
	sf.Refresh()
}

func (sf *StudentFee) Refresh() {
	sf.Balance = Round(sf.Amount - sf.Paid)
	switch {
	case sf.Paid <= 0:
		sf.Status = StatusUnpaid
	case sf.Balance <= 0:
		sf.Status = StatusPaid
	default:
		sf.Status = StatusPartial
	}
}

type StudentFeeFilter struct {
	SchoolID     string
	IDs          []string
	StudentID    string
	StudentIDs   []string
	StructureID  string
	StructureIDs []string
	Statuses     []string
}

type Payment struct {
	ID           string    `json:"id"`
	SchoolID     string    `json:"school_id"`
	StudentFeeID string    `json:"student_fee_id"`
	StudentID    string    `json:"student_id"`
	Amount       float64   `json:"amount"`
	Method       string    `json:"method"`
	Reference    string    `json:"reference"`
	ReceivedBy   string    `json:"received_by"`
	PaidAt       time.Time `json:"paid_at"`
	CreatedAt    time.Time `json:"created_at"`
}

type NewPayment struct {
	StudentFeeID string    `json:"student_fee_id" validate:"required,uuid"`
	Amount       float64   `json:"amount"`
	Method       string    `json:"method" validate:"required,oneof=cash mpesa bank card"`
	Reference    string    `json:"reference" validate:"omitempty,max=100"`
	PaidAt       time.Time `json:"paid_at"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.Method = core.CleanString(np.Method, true /* lower */)
	np.Reference = core.CleanString(np.Reference)
	np.Amount = Round(np.Amount)
	if err := validate.Struct(np); err != nil {
		return err
	}
	if np.Amount <= 0 {
		return core.NewFieldError("amount", "amount must be greater than 0")
	}
	return nil
}

type PaymentFilter struct {
	SchoolID     string
	StudentID    string
	StudentIDs   []string
	StudentFeeID string
	Method       string
	From         time.Time
	To           time.Time
}

// Balance sums the fees of a student.
type Balance struct {
	StudentID string       `json:"student_id"`
	Amount    float64      `json:"amount"`
	Paid      float64      `json:"paid"`
	Balance   float64      `json:"balance"`
	Fees      []StudentFee `json:"fees"`
}

type CollectionSummary struct {
	Term         string  `json:"term,omitempty"`
	AcademicYear string  `json:"academic_year,omitempty"`
	Expected     float64 `json:"expected"`
	Collected    float64 `json:"collected"`
	Outstanding  float64 `json:"outstanding"`
	Rate         float64 `json:"rate"` // collected percentage
}

// Round rounds an amount to cents.
func Round(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// Balances groups fees per student, keeping the order students first appear in.
func Balances(fees []StudentFee) []Balance {
	index := make(map[string]int)
	balances := make([]Balance, 0)
	for _, sf := range fees {
		i, ok := index[sf.StudentID]
		if !ok {
			i = len(balances)
			index[sf.StudentID] = i
			balances = append(balances, Balance{StudentID: sf.StudentID, Fees: []StudentFee{}})
		}
		b := &balances[i]
		b.Amount = Round(b.Amount + sf.Amount)
		b.Paid = Round(b.Paid + sf.Paid)
		b.Balance = Round(b.Balance + sf.Balance)
		b.Fees = append(b.Fees, sf)
	}
	return balances
}

// Summarize totals the expected & collected amounts of fees.
func Summarize(term, academicYear string, fees []StudentFee) CollectionSummary {
	sum := CollectionSummary{Term: term, AcademicYear: academicYear}
	for _, sf := range fees {
		sum.Expected += sf.Amount
		sum.Collected += sf.Paid
	}
	sum.Expected = Round(sum.Expected)
	sum.Collected = Round(sum.Collected)
	sum.Outstanding = Round(sum.Expected - sum.Collected)
	if sum.Expected > 0 {
		sum.Rate = Round(sum.Collected * 100 / sum.Expected)
	}
	return sum
}
