package payments

import (
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/validators"
	internalpayments "github.com/angelmondragon/storefront-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const maxDescriptionLen = 255

// shopper is the authenticated caller of a payments endpoint.
type shopper struct {
	svc    internalpayments.Service
	userID uuid.UUID
}

type startRequest struct {
	Gateway string `json:"gateway" validate:"omitempty,max=32"`
}

type chargeRequest struct {
	GatewayOrderID string `json:"gateway_order_id" validate:"required,max=128"`
	SourceID       string `json:"source_id" validate:"required,max=255"`
}

// callbackFields lists accepted names per parameter. Razorpay's checkout
// widget posts its own field names; other gateways use the generic ones.
var (
	orderIDFields     = []string{"gateway_order_id", "razorpay_order_id"}
	paymentIDFields   = []string{"gateway_payment_id", "razorpay_payment_id"}
	signatureFields   = []string{"gateway_signature", "signature", "razorpay_signature"}
	descriptionFields = []string{"description", "error_description", "error[description]"}
)

type callbackPayload struct {
	GatewayOrderID    string `json:"gateway_order_id"`
	RazorpayOrderID   string `json:"razorpay_order_id"`
	GatewayPaymentID  string `json:"gateway_payment_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	GatewaySignature  string `json:"gateway_signature"`
	Signature         string `json:"signature"`
	RazorpaySignature string `json:"razorpay_signature"`
	Description       string `json:"description"`
	ErrorDescription  string `json:"error_description"`
}

// paymentIDParam reads the public payment id from the route.
func paymentIDParam(r *http.Request) (string, error) {
	raw := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "paymentId")))
	if raw == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	if len(raw) > 32 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid payment id")
	}
	return raw, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

// readCallback accepts query parameters, urlencoded forms and JSON bodies.
func readCallback(r *http.Request) (callbackPayload, error) {
	if r.Method == http.MethodPost && isJSON(r) {
		var payload callbackPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return callbackPayload{}, err
		}
		return payload, nil
	}
	if err := r.ParseForm(); err != nil {
		return callbackPayload{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid callback form")
	}
	pick := func(names []string) string {
		for _, name := range names {
			if v := strings.TrimSpace(r.Form.Get(name)); v != "" {
				return v
			}
		}
		return ""
	}
	return callbackPayload{
		GatewayOrderID:   pick(orderIDFields),
		GatewayPaymentID: pick(paymentIDFields),
		GatewaySignature: pick(signatureFields),
		Description:      pick(descriptionFields),
	}, nil
}

func (p callbackPayload) success() internalpayments.Callback {
	return internalpayments.Callback{
		GatewayOrderID:   firstNonEmpty(p.GatewayOrderID, p.RazorpayOrderID),
		GatewayPaymentID: firstNonEmpty(p.GatewayPaymentID, p.RazorpayPaymentID),
		Signature:        firstNonEmpty(p.GatewaySignature, p.Signature, p.RazorpaySignature),
	}
}

func (p callbackPayload) failure() internalpayments.FailureCallback {
	return internalpayments.FailureCallback{
		GatewayOrderID: firstNonEmpty(p.GatewayOrderID, p.RazorpayOrderID),
		Description:    validators.SanitizeString(firstNonEmpty(p.Description, p.ErrorDescription), maxDescriptionLen),
	}
}
