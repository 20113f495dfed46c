package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/edufam/edufam/apps/api/echo"
	"github.com/edufam/edufam/core/fee"
)

func Test_feeApi(t *testing.T) {
	e := setup(t)
	w := e.seed(t)

	financeToken := e.token(t, w.finance)
	parentToken := e.token(t, w.parent)
	newStructure := fee.NewStructure{ClassID: w.class.ID, Name: "Tuition", Term: "Term1", AcademicYear: "2026", Amount: 150.499}

	runHTTPTests(t, e.app, []httpTest{
		{
			name: "structures: finance required", method: http.MethodPost, path: "/v1/fees/structures", token: e.token(t, w.teacher),
			body: marchallObj(t, newStructure), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "structures: required fields", method: http.MethodPost, path: "/v1/fees/structures", token: financeToken, body: []byte(`{"amount": 10}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"class_id": "this field is required", "name": "this field is required", "term": "this field is required", "academic_year": "this field is required"}`),
		},
		{
			name: "structures: invalid due date", method: http.MethodPost, path: "/v1/fees/structures", token: financeToken,
			body: []byte(`{"class_id": "` + w.class.ID + `", "name": "Bus", "term": "term1", "academic_year": "2026", "amount": 10, "due_date": "01/11/2026"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "balances: finance or parents only", method: http.MethodGet, path: "/v1/fees/balances", token: e.token(t, w.teacher),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "balances: nothing billed", method: http.MethodGet, path: "/v1/fees/balances", token: financeToken, wantCode: http.StatusOK, wantData: marchallList(t)},
	})

	var structure fee.Structure
	t.Run("create structure", func(t *testing.T) {
		rec := serve(e.app, http.MethodPost, "/v1/fees/structures", financeToken, marchallObj(t, newStructure))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		unmarchall(t, rec, &structure)
		assert.Equal(t, w.school.ID, structure.SchoolID)
		assert.Equal(t, "term1", structure.Term)
		assert.Equal(t, 150.5, structure.Amount)

		rec = serve(e.app, http.MethodPost, "/v1/fees/structures", financeToken, marchallObj(t, newStructure))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"name": fee.ErrStructureExists.Error()}),
		}, rec)
	})

	t.Run("assign", func(t *testing.T) {
		path := "/v1/fees/structures/" + structure.ID + "/assign"
		rec := serve(e.app, http.MethodPost, path, financeToken)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, echoapi.CountResponse{Count: 2})}, rec)

		// students are billed once
		rec = serve(e.app, http.MethodPost, path, financeToken)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, echoapi.CountResponse{Count: 0})}, rec)
	})

	var billed fee.StudentFee
	t.Run("parents see the balance of their children", func(t *testing.T) {
		rec := serve(e.app, http.MethodGet, "/v1/fees/balances", parentToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var balances []fee.Balance
		unmarchall(t, rec, &balances)
		require.Len(t, balances, 1)
		assert.Equal(t, w.child.ID, balances[0].StudentID)
		assert.Equal(t, 150.5, balances[0].Balance)
		require.Len(t, balances[0].Fees, 1)
		billed = balances[0].Fees[0]
		assert.Equal(t, fee.StatusUnpaid, billed.Status)

		rec = serve(e.app, http.MethodGet, "/v1/fees/balances?student_id="+w.classmate.ID, parentToken)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t)}, rec)
	})

	payment := fee.NewPayment{StudentFeeID: billed.ID, Amount: 50, Method: "MPESA", Reference: "QK7T2X"}
	t.Run("record payment", func(t *testing.T) {
		rec := serve(e.app, http.MethodPost, "/v1/fees/payments", parentToken, marchallObj(t, payment))
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}, rec)

		rec = serve(e.app, http.MethodPost, "/v1/fees/payments", financeToken, marchallObj(t, payment))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var got echoapi.PaymentResponse
		unmarchall(t, rec, &got)
		assert.Equal(t, fee.MethodMpesa, got.Payment.Method)
		assert.Equal(t, w.finance.ID, got.Payment.ReceivedBy)
		assert.Equal(t, w.child.ID, got.Payment.StudentID)
		assert.False(t, got.Payment.PaidAt.IsZero())
		assert.Equal(t, fee.StatusPartial, got.StudentFee.Status)
		assert.Equal(t, 50.0, got.StudentFee.Paid)
		assert.Equal(t, 100.5, got.StudentFee.Balance)
	})

	runHTTPTests(t, e.app, []httpTest{
		{
			name: "payment: reference taken", method: http.MethodPost, path: "/v1/fees/payments", token: financeToken, body: marchallObj(t, payment),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"reference": fee.ErrReferenceExists.Error()}),
		},
		{
			name: "payment: above the balance", method: http.MethodPost, path: "/v1/fees/payments", token: financeToken,
			body:     marchallObj(t, fee.NewPayment{StudentFeeID: billed.ID, Amount: 200, Method: fee.MethodCash}),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"amount": "amount exceeds the outstanding balance of 100.50"}`),
		},
		{
			name: "payment: amount required", method: http.MethodPost, path: "/v1/fees/payments", token: financeToken,
			body:     marchallObj(t, fee.NewPayment{StudentFeeID: billed.ID, Method: fee.MethodCash}),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"amount": "amount must be greater than 0"}`),
		},
		{
			name: "payment: unknown student fee", method: http.MethodPost, path: "/v1/fees/payments", token: financeToken,
			body:     marchallObj(t, fee.NewPayment{StudentFeeID: w.child.ID, Amount: 10, Method: fee.MethodCash}),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"student_fee_id": "unknown student fee"}`),
		},
		{
			name: "payment: invalid method", method: http.MethodPost, path: "/v1/fees/payments", token: financeToken,
			body:     marchallObj(t, fee.NewPayment{StudentFeeID: billed.ID, Amount: 10, Method: "cheque"}),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"method": "must be one of: cash mpesa bank card"}`),
		},
		{name: "payments: other parents see nothing", method: http.MethodGet, path: "/v1/fees/payments", token: e.token(t, w.otherParent), wantCode: http.StatusOK, wantData: marchallList(t)},
		{
			name: "summary: finance required", method: http.MethodGet, path: "/v1/fees/summary", token: parentToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "summary", method: http.MethodGet, path: "/v1/fees/summary?term=term1", token: financeToken, wantCode: http.StatusOK,
			wantData: marchallObj(t, fee.CollectionSummary{Term: "term1", Expected: 301, Collected: 50, Outstanding: 251, Rate: 16.61}),
		},
	})

	t.Run("payments of a child", func(t *testing.T) {
		for _, token := range []string{parentToken, financeToken} {
			rec := serve(e.app, http.MethodGet, "/v1/fees/payments?student_id="+w.child.ID, token)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var payments []fee.Payment
			unmarchall(t, rec, &payments)
			require.Len(t, payments, 1)
			assert.Equal(t, "QK7T2X", payments[0].Reference)
		}
	})

	t.Run("update & delete structure", func(t *testing.T) {
		path := "/v1/fees/structures/" + structure.ID
		rec := serve(e.app, http.MethodPut, path, financeToken, []byte(`{"name": "Tuition fees", "due_date": "2026-11-01"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got fee.Structure
		unmarchall(t, rec, &got)
		assert.Equal(t, "Tuition fees", got.Name)
		assert.Equal(t, "2026-11-01", got.DueDate.String())
		assert.Equal(t, 150.5, got.Amount)

		rec = serve(e.app, http.MethodDelete, path, financeToken)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		rec = serve(e.app, http.MethodGet, path, financeToken)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: fee.ErrStructureNotFound.Error()})}, rec)
	})
}
