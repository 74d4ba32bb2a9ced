package square

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/gateway"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const redacted = "[REDACTED]"

var (
	errLoggerRequired       = errors.New("square logger is required")
	errAccessTokenRequired  = errors.New("square access token is required")
	errSignatureKeyRequired = errors.New("square signature key is required")
	errLocationRequired     = errors.New("square location id is required")
	errInvalidSquareEnv     = errors.New(`square environment must be "sandbox" or "production"`)
)

// hosts maps the accepted environment names to the Connect API host.
var hosts = map[string]string{
	"sandbox":    "https://connect.squareupsandbox.com",
	"production": "https://connect.squareup.com",
}

// statusCodes translates Square HTTP statuses into domain codes. Statuses
// not listed fall back to validation for 4xx and dependency otherwise.
var statusCodes = map[int]pkgerrors.Code{
	http.StatusBadRequest:          pkgerrors.CodeValidation,
	http.StatusUnauthorized:        pkgerrors.CodeUnauthorized,
	http.StatusForbidden:           pkgerrors.CodeForbidden,
	http.StatusNotFound:            pkgerrors.CodeNotFound,
	http.StatusConflict:            pkgerrors.CodeConflict,
	http.StatusUnprocessableEntity: pkgerrors.CodeStateConflict,
	http.StatusTooManyRequests:     pkgerrors.CodeDependency,
}

var sensitiveFields = []string{"card", "nonce", "token", "cvv", "cvc", "secret", "email", "phone"}

// Client is the Square card gateway. Card nonces from the Web Payments SDK
// are charged server side and settled against a locally minted reference.
type Client struct {
	payments      paymentsAPI
	applicationID string
	locationID    string
	environment   string
	signatureKey  string
	timeout       time.Duration
	logger        *logger.Logger
}

var _ gateway.Gateway = (*Client)(nil)

func NewClient(ctx context.Context, cfg config.SquareConfig, timeout time.Duration, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env := strings.ToLower(strings.TrimSpace(cfg.Environment()))
	if env == "" {
		env = "sandbox"
	}
	host, ok := hosts[env]
	if !ok {
		return nil, errInvalidSquareEnv
	}

	token := strings.TrimSpace(cfg.AccessToken)
	required := []struct {
		value string
		err   error
	}{
		{token, errAccessTokenRequired},
		{cfg.SignatureKey, errSignatureKeyRequired},
		{cfg.LocationID, errLocationRequired},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, r.err
		}
	}

	sdk := sqclient.NewClient(sqoption.WithBaseURL(host), sqoption.WithToken(token))
	c := &Client{
		payments:      sdkPayments{sdk: sdk},
		applicationID: strings.TrimSpace(cfg.ApplicationID),
		locationID:    strings.TrimSpace(cfg.LocationID),
		environment:   env,
		signatureKey:  strings.TrimSpace(cfg.SignatureKey),
		timeout:       timeout,
		logger:        logg,
	}
	logg.Info(logg.WithField(ctx, "environment", env), "square gateway ready")
	return c, nil
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// ensureIdempotencyKey keeps a caller supplied key and otherwise mints
// "<scope>-<uuid>".
func (c *Client) ensureIdempotencyKey(scope, provided string) string {
	if strings.TrimSpace(provided) != "" {
		return provided
	}
	if scope = strings.TrimSpace(scope); scope == "" {
		scope = "sf"
	}
	return scope + "-" + uuid.NewString()
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	scrubbed := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		scrubbed[k] = scrub(k, v)
	}
	scrubbed["operation"] = op
	scrubbed["phase"] = phase
	ctx = c.logger.WithFields(ctx, scrubbed)
	if phase == "error" {
		c.logger.Error(ctx, "square "+op, fmt.Errorf("%v", fields["error"]))
		return
	}
	c.logger.Info(ctx, "square "+phase)
}

func scrub(key string, value any) any {
	key = strings.ToLower(key)
	for _, s := range sensitiveFields {
		if strings.Contains(key, s) {
			return redacted
		}
	}
	return value
}

func (c *Client) mapSquareError(err error, op string) error {
	if err == nil {
		return nil
	}
	msg := "square " + op + " failed"
	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
	}
	code := codeForStatus(apiErr.StatusCode)
	for _, e := range squareErrors(apiErr) {
		switch {
		case e == nil:
			continue
		case e.Code == sq.ErrorCodeIdempotencyKeyReused:
			return pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, msg)
		case e.Category == sq.ErrorCategoryAuthenticationError:
			return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, msg)
		}
	}
	return pkgerrors.Wrap(code, err, msg)
}

// squareErrors decodes the {"errors": [...]} body the SDK keeps as the
// wrapped error text.
func squareErrors(apiErr *sqcore.APIError) []*sq.Error {
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	var body struct {
		Errors []*sq.Error `json:"errors"`
	}
	if json.Unmarshal([]byte(inner.Error()), &body) != nil {
		return nil
	}
	return body.Errors
}

func codeForStatus(status int) pkgerrors.Code {
	if code, ok := statusCodes[status]; ok {
		return code
	}
	if status >= 400 && status < 500 {
		return pkgerrors.CodeValidation
	}
	return pkgerrors.CodeDependency
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
