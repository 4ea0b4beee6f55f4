package external

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"cardsignup/internal/types"
)

// StripeGatewayConfig holds the configuration for creating a StripeGateway.
type StripeGatewayConfig struct {
	HTTPClient *http.Client
	BaseURL    string // Override for stripe-mock and tests; empty uses the SDK default
	Logger     *slog.Logger
}

// StripeGateway implements PaymentGateway on stripe-go. Backends are built
// once and shared; each Session binds its own API key on top of them.
type StripeGateway struct {
	backends *stripe.Backends
	logger   *slog.Logger
}

// NewStripeGateway creates a StripeGateway. SDK retries are disabled and SDK
// log output goes to the slog logger.
func NewStripeGateway(cfg StripeGatewayConfig) *StripeGateway {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        cfg.HTTPClient,
		LeveledLogger:     &slogLeveledLogger{logger: logger.With("component", "stripe")},
		MaxNetworkRetries: stripe.Int64(0),
		EnableTelemetry:   stripe.Bool(false),
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripe.String(strings.TrimSuffix(cfg.BaseURL, "/"))
	}

	return &StripeGateway{
		backends: stripe.NewBackendsWithConfig(backendCfg),
		logger:   logger,
	}
}

// Session returns a PaymentSession authenticated with key.
func (g *StripeGateway) Session(key types.SecretString) PaymentSession {
	api := &client.API{}
	api.Init(key.Unmask(), g.backends)
	return &stripeSession{api: api, logger: g.logger}
}

type stripeSession struct {
	api    *client.API
	logger *slog.Logger
}

func (s *stripeSession) CreateCardPaymentMethod(ctx context.Context, card types.CardData) (string, error) {
	month, err := card.ExpMonth()
	if err != nil {
		return "", types.NewAppError(types.ErrCodeValidationInvalidCard, "expirationMonth is not an integer", err)
	}
	year, err := card.ExpYear()
	if err != nil {
		return "", types.NewAppError(types.ErrCodeValidationInvalidCard, "expirationYear is not an integer", err)
	}

	params := &stripe.PaymentMethodParams{
		Type: stripe.String(string(stripe.PaymentMethodTypeCard)),
		Card: &stripe.PaymentMethodCardParams{
			Number:   stripe.String(card.CardNumber),
			ExpMonth: stripe.Int64(month),
			ExpYear:  stripe.Int64(year),
			CVC:      stripe.String(card.CCV),
		},
	}
	params.Context = ctx

	pm, err := s.api.PaymentMethods.New(params)
	if err != nil {
		return "", MapStripeError("create_payment_method", err)
	}
	return pm.ID, nil
}

func (s *stripeSession) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	cust, err := s.api.Customers.New(params)
	if err != nil {
		return nil, MapStripeError("create_customer", err)
	}
	return cust, nil
}

func (s *stripeSession) AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) error {
	params := &stripe.PaymentMethodAttachParams{
		Customer: stripe.String(customerID),
	}
	params.Context = ctx

	if _, err := s.api.PaymentMethods.Attach(paymentMethodID, params); err != nil {
		return MapStripeError("attach_payment_method", err)
	}
	return nil
}

func (s *stripeSession) CreateSubscription(ctx context.Context, customerID, planID, paymentMethodID string) (string, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Plan: stripe.String(planID)},
		},
		DefaultPaymentMethod: stripe.String(paymentMethodID),
	}
	params.Context = ctx

	sub, err := s.api.Subscriptions.New(params)
	if err != nil {
		return "", MapStripeError("create_subscription", err)
	}
	return sub.ID, nil
}

func (s *stripeSession) DetachPaymentMethod(ctx context.Context, paymentMethodID string) error {
	params := &stripe.PaymentMethodDetachParams{}
	params.Context = ctx

	if _, err := s.api.PaymentMethods.Detach(paymentMethodID, params); err != nil {
		return MapStripeError("detach_payment_method", err)
	}
	return nil
}

func (s *stripeSession) DeleteCustomer(ctx context.Context, customerID string) error {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	if _, err := s.api.Customers.Del(customerID, params); err != nil {
		return MapStripeError("delete_customer", err)
	}
	return nil
}

// MapStripeError translates an SDK error into an AppError tagged with op.
// AppErrors raised below the SDK (an open breaker) pass through unchanged.
func MapStripeError(op string, err error) error {
	if err == nil {
		return nil
	}

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.WithDetails(map[string]any{"op": op})
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		details := map[string]any{
			"op":          op,
			"stripe_type": string(stripeErr.Type),
			"status":      stripeErr.HTTPStatusCode,
		}
		if stripeErr.Code != "" {
			details["stripe_code"] = string(stripeErr.Code)
		}
		if stripeErr.DeclineCode != "" {
			details["decline_code"] = string(stripeErr.DeclineCode)
		}
		if stripeErr.RequestID != "" {
			details["request_id"] = stripeErr.RequestID
		}

		code := types.ErrCodeUpstreamStripe
		switch {
		case stripeErr.Type == stripe.ErrorTypeCard || stripeErr.Code == stripe.ErrorCodeCardDeclined:
			code = types.ErrCodePaymentDeclined
		case stripeErr.HTTPStatusCode == http.StatusTooManyRequests:
			code = types.ErrCodeUpstreamRateLimited
		case stripeErr.HTTPStatusCode >= 500:
			code = types.ErrCodeUpstreamUnavailable
		}
		return types.NewAppErrorWithDetails(code, fmt.Sprintf("stripe %s failed: %s", op, stripeErr.Msg), err, details)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return types.NewAppErrorWithDetails(types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("stripe %s timed out", op), err, map[string]any{"op": op})
	}

	// Network failures (DNS, connection refused, TLS).
	return types.NewAppErrorWithDetails(types.ErrCodeUpstreamUnavailable,
		fmt.Sprintf("stripe %s request failed", op), err, map[string]any{"op": op})
}

// slogLeveledLogger adapts slog to the stripe-go LeveledLoggerInterface.
// SDK errors are logged at warn: the signup error boundary owns the single
// error-level record for a failed invocation.
type slogLeveledLogger struct {
	logger *slog.Logger
}

func (l *slogLeveledLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l *slogLeveledLogger) Infof(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l *slogLeveledLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

func (l *slogLeveledLogger) Errorf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}
