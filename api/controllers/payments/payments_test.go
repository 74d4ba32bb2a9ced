package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	internalpayments "github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type stubPaymentsService struct {
	start       *internalpayments.StartResult
	charge      *internalpayments.ChargeResult
	outcome     *internalpayments.Outcome
	history     *internalpayments.HistoryResult
	detail      *models.Payment
	err         error
	lastStart   internalpayments.StartInput
	lastCharge  internalpayments.ChargeInput
	lastSettle  internalpayments.Callback
	lastFailure internalpayments.FailureCallback
	lastDetail  string
	settleCalls int
}

func (s *stubPaymentsService) Start(_ context.Context, input internalpayments.StartInput) (*internalpayments.StartResult, error) {
	s.lastStart = input
	return s.start, s.err
}

func (s *stubPaymentsService) Charge(_ context.Context, input internalpayments.ChargeInput) (*internalpayments.ChargeResult, error) {
	s.lastCharge = input
	return s.charge, s.err
}

func (s *stubPaymentsService) Settle(_ context.Context, cb internalpayments.Callback) (*internalpayments.Outcome, error) {
	s.settleCalls++
	s.lastSettle = cb
	return s.outcome, s.err
}

func (s *stubPaymentsService) Fail(_ context.Context, cb internalpayments.FailureCallback) (*internalpayments.Outcome, error) {
	s.lastFailure = cb
	return s.outcome, s.err
}

func (s *stubPaymentsService) History(context.Context, uuid.UUID, pagination.Params) (*internalpayments.HistoryResult, error) {
	return s.history, s.err
}

func (s *stubPaymentsService) Detail(_ context.Context, _ uuid.UUID, paymentID string) (*models.Payment, error) {
	s.lastDetail = paymentID
	return s.detail, s.err
}

func (s *stubPaymentsService) ExpireStale(context.Context, time.Duration, int) (int, error) {
	return 0, s.err
}

func orderRequest(method, target, body string, userID uuid.UUID, orderNumber string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	ctx := middleware.WithUserID(req.Context(), userID.String())
	rc := chi.NewRouteContext()
	rc.URLParams.Add("orderNumber", orderNumber)
	return req.WithContext(context.WithValue(ctx, chi.RouteCtxKey, rc))
}

func TestStartReturnsGatewayCheckout(t *testing.T) {
	svc := &stubPaymentsService{start: &internalpayments.StartResult{
		Order: &models.Order{OrderNumber: "ORD-1"},
		Checkout: &internalpayments.Checkout{
			PaymentID:      "PAY-1",
			OrderNumber:    "ORD-1",
			Gateway:        enums.PaymentGatewayRazorpay,
			GatewayOrderID: "order_abc",
			KeyID:          "rzp_test",
			Amount:         decimal.RequireFromString("270.00"),
			AmountMinor:    27000,
			Currency:       enums.CurrencyINR,
		},
	}}
	userID := uuid.New()
	rec := httptest.NewRecorder()
	Start(svc, nil).ServeHTTP(rec, orderRequest(http.MethodPost, "/api/v1/orders/ORD-1/payments", `{"gateway":"Razorpay"}`, userID, "ORD-1"))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "razorpay", svc.lastStart.Gateway)
	require.Equal(t, userID, svc.lastStart.UserID)

	var body struct {
		Data startResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, startPending, body.Data.Status)
	require.NotNil(t, body.Data.Checkout)
	require.Equal(t, int64(27000), body.Data.Checkout.AmountMinor)
	require.Equal(t, "order_abc", body.Data.Checkout.GatewayOrderID)
}

func TestStartWithoutBodyUsesDefaultGateway(t *testing.T) {
	svc := &stubPaymentsService{start: &internalpayments.StartResult{
		AlreadyPaid: true,
		Order:       &models.Order{OrderNumber: "ORD-1"},
	}}
	rec := httptest.NewRecorder()
	Start(svc, nil).ServeHTTP(rec, orderRequest(http.MethodPost, "/api/v1/orders/ORD-1/payments", "", uuid.New(), "ORD-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, svc.lastStart.Gateway)
	require.Contains(t, rec.Body.String(), startAlreadyPaid)
}

func TestStartCashOnDeliveryCompletes(t *testing.T) {
	svc := &stubPaymentsService{start: &internalpayments.StartResult{
		Order: &models.Order{OrderNumber: "ORD-1"},
		Payment: &models.Payment{
			PaymentID: "PAY-1",
			Gateway:   enums.PaymentGatewayCOD,
			Status:    enums.PaymentStatusCompleted,
			Amount:    decimal.RequireFromString("270.00"),
		},
	}}
	rec := httptest.NewRecorder()
	Start(svc, nil).ServeHTTP(rec, orderRequest(http.MethodPost, "/api/v1/orders/ORD-1/payments", "", uuid.New(), "ORD-1"))

	require.Equal(t, http.StatusCreated, rec.Code)
	var body struct {
		Data startResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, startCompleted, body.Data.Status)
	require.Nil(t, body.Data.Checkout)
	require.Equal(t, enums.PaymentStatusCompleted, body.Data.Payment.Status)
}

func TestStartGatewayFailure(t *testing.T) {
	svc := &stubPaymentsService{err: pkgerrors.New(pkgerrors.CodePaymentInit, "could not start payment")}
	rec := httptest.NewRecorder()
	Start(svc, nil).ServeHTTP(rec, orderRequest(http.MethodPost, "/api/v1/orders/ORD-1/payments", "", uuid.New(), "ORD-1"))

	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCallbackSuccessAcceptsRazorpayForm(t *testing.T) {
	svc := &stubPaymentsService{outcome: &internalpayments.Outcome{
		PaymentID:   "PAY-1",
		OrderNumber: "ORD-1",
		Gateway:     enums.PaymentGatewayRazorpay,
		Status:      enums.PaymentStatusCompleted,
		OrderStatus: enums.OrderStatusPaid,
	}}
	form := url.Values{
		"razorpay_order_id":   {"order_abc"},
		"razorpay_payment_id": {"pay_xyz"},
		"razorpay_signature":  {"deadbeef"},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback/success", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	CallbackSuccess(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, internalpayments.Callback{
		GatewayOrderID:   "order_abc",
		GatewayPaymentID: "pay_xyz",
		Signature:        "deadbeef",
	}, svc.lastSettle)
	require.Contains(t, rec.Body.String(), `"order_status":"paid"`)
}

func TestCallbackSuccessAcceptsQueryAndJSON(t *testing.T) {
	svc := &stubPaymentsService{outcome: &internalpayments.Outcome{Status: enums.PaymentStatusCompleted}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/callback/success?gateway_order_id=pi_1&gateway_payment_id=pi_1&signature=pi_1_secret", nil)
	rec := httptest.NewRecorder()
	CallbackSuccess(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "pi_1_secret", svc.lastSettle.Signature)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback/success", strings.NewReader(`{"gateway_order_id":"sq_1","gateway_payment_id":"p_1","signature":"sig"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	CallbackSuccess(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "sq_1", svc.lastSettle.GatewayOrderID)
	require.Equal(t, 2, svc.settleCalls)
}

func TestCallbackSuccessAcceptsGatewaySignatureField(t *testing.T) {
	svc := &stubPaymentsService{outcome: &internalpayments.Outcome{Status: enums.PaymentStatusCompleted}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/callback/success?gateway_order_id=order_1&gateway_payment_id=pay_1&gateway_signature=abc", nil)
	rec := httptest.NewRecorder()
	CallbackSuccess(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, internalpayments.Callback{
		GatewayOrderID:   "order_1",
		GatewayPaymentID: "pay_1",
		Signature:        "abc",
	}, svc.lastSettle)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback/success", strings.NewReader(`{"gateway_order_id":"order_2","gateway_payment_id":"pay_2","gateway_signature":"def"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	CallbackSuccess(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "def", svc.lastSettle.Signature)

	form := url.Values{
		"gateway_order_id":   {"order_3"},
		"gateway_payment_id": {"pay_3"},
		"gateway_signature":  {"ghi"},
	}
	req = httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback/success", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	CallbackSuccess(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ghi", svc.lastSettle.Signature)
	require.Equal(t, 3, svc.settleCalls)
}

func TestCallbackSuccessSignatureMismatch(t *testing.T) {
	svc := &stubPaymentsService{err: pkgerrors.New(pkgerrors.CodeSignature, "signature verification failed")}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/callback/success?gateway_order_id=a&gateway_payment_id=b&signature=c", nil)
	rec := httptest.NewRecorder()
	CallbackSuccess(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), string(pkgerrors.CodeSignature))
}

func TestCallbackFailureRecordsDescription(t *testing.T) {
	svc := &stubPaymentsService{outcome: &internalpayments.Outcome{Status: enums.PaymentStatusFailed}}
	form := url.Values{
		"razorpay_order_id":  {"order_abc"},
		"error[description]": {"Card declined"},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback/failure", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	CallbackFailure(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "order_abc", svc.lastFailure.GatewayOrderID)
	require.Equal(t, "Card declined", svc.lastFailure.Description)
}

func TestChargeForwardsSource(t *testing.T) {
	svc := &stubPaymentsService{charge: &internalpayments.ChargeResult{
		GatewayOrderID:   "sqref_1",
		GatewayPaymentID: "sq_pay_1",
		Signature:        "sig",
	}}
	userID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/charge", strings.NewReader(`{"gateway_order_id":"sqref_1","source_id":"cnon:card"}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	rec := httptest.NewRecorder()
	Charge(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, internalpayments.ChargeInput{UserID: userID, GatewayOrderID: "sqref_1", SourceID: "cnon:card"}, svc.lastCharge)
	require.Contains(t, rec.Body.String(), `"gateway_payment_id":"sq_pay_1"`)
}

func TestHistoryRendersPage(t *testing.T) {
	svc := &stubPaymentsService{history: &internalpayments.HistoryResult{
		Payments: []models.Payment{{
			PaymentID: "PAY-2",
			OrderID:   uuid.New(),
			Gateway:   enums.PaymentGatewayStripe,
			Status:    enums.PaymentStatusPending,
			Amount:    decimal.RequireFromString("10.00"),
		}},
	}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	rec := httptest.NewRecorder()
	History(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data historyPage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Data.Payments, 1)
	require.Equal(t, "PAY-2", body.Data.Payments[0].PaymentID)
}

func TestDetailScopedToShopper(t *testing.T) {
	gatewayOrderID := "order_abc"
	svc := &stubPaymentsService{detail: &models.Payment{
		PaymentID:      "PAY-20260101120000-ABCD1234",
		OrderID:        uuid.New(),
		Gateway:        enums.PaymentGatewayRazorpay,
		Status:         enums.PaymentStatusPending,
		Amount:         decimal.RequireFromString("42.00"),
		GatewayOrderID: &gatewayOrderID,
	}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/pay-20260101120000-abcd1234", nil)
	ctx := middleware.WithUserID(req.Context(), uuid.NewString())
	rc := chi.NewRouteContext()
	rc.URLParams.Add("paymentId", "pay-20260101120000-abcd1234")
	req = req.WithContext(context.WithValue(ctx, chi.RouteCtxKey, rc))
	rec := httptest.NewRecorder()
	Detail(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "PAY-20260101120000-ABCD1234", svc.lastDetail)
	require.Contains(t, rec.Body.String(), `"gateway_order_id":"order_abc"`)

	svc = &stubPaymentsService{err: pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")}
	rec = httptest.NewRecorder()
	Detail(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
