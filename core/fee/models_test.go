package fee

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/edufam/edufam/core"
)

func TestStudentFee_AddPayment(t *testing.T) {
	sf := StudentFee{Amount: 1000}
	sf.Refresh()
	assert.Equal(t, StatusUnpaid, sf.Status)
	assert.Equal(t, float64(1000), sf.Balance)

	sf.AddPayment(250.25)
	assert.Equal(t, 250.25, sf.Paid)
	assert.Equal(t, 749.75, sf.Balance)
	assert.Equal(t, StatusPartial, sf.Status)

	sf.AddPayment(749.75)
	assert.Equal(t, float64(0), sf.Balance)
	assert.Equal(t, StatusPaid, sf.Status)
}

func TestBalances(t *testing.T) {
	fees := []StudentFee{
		{StudentID: "s1", Amount: 100, Paid: 40, Balance: 60},
		{StudentID: "s2", Amount: 100, Paid: 100},
		{StudentID: "s1", Amount: 50.5, Balance: 50.5},
	}
	got := Balances(fees)
	assert.Len(t, got, 2)
	assert.Equal(t, "s1", got[0].StudentID)
	assert.Equal(t, 150.5, got[0].Amount)
	assert.Equal(t, float64(40), got[0].Paid)
	assert.Equal(t, 110.5, got[0].Balance)
	assert.Len(t, got[0].Fees, 2)
	assert.Equal(t, float64(0), got[1].Balance)
}

func TestSummarize(t *testing.T) {
	sum := Summarize("term1", "2024", []StudentFee{{Amount: 300, Paid: 100}, {Amount: 100, Paid: 50}})
	assert.Equal(t, CollectionSummary{
		Term: "term1", AcademicYear: "2024",
		Expected: 400, Collected: 150, Outstanding: 250, Rate: 37.5,
	}, sum)

	empty := Summarize("", "", nil)
	assert.Equal(t, float64(0), empty.Rate)
}

func TestNewPayment_Validate(t *testing.T) {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	id := core.NewID()
	tests := []struct {
		name    string
		np      NewPayment
		wantErr bool
	}{
		{name: "valid", np: NewPayment{StudentFeeID: id, Amount: 10, Method: " MPESA "}},
		{name: "zero amount", np: NewPayment{StudentFeeID: id, Amount: 0, Method: MethodCash}, wantErr: true},
		{name: "negative amount", np: NewPayment{StudentFeeID: id, Amount: -5, Method: MethodCash}, wantErr: true},
		{name: "rounds to zero", np: NewPayment{StudentFeeID: id, Amount: 0.001, Method: MethodCash}, wantErr: true},
		{name: "unknown method", np: NewPayment{StudentFeeID: id, Amount: 5, Method: "cheque"}, wantErr: true},
		{name: "missing fee", np: NewPayment{Amount: 5, Method: MethodCash}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.np.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
