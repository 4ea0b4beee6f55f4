// Package billing provisions a paying customer with the payment processor:
// payment method, customer, attachment and subscription, in that order.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	stripe "github.com/stripe/stripe-go/v76"

	"cardsignup/internal/external"
	"cardsignup/internal/queue"
	"cardsignup/internal/types"
)

// Provisioning steps, used in error details, logs and orphan records.
const (
	StepCreatePaymentMethod = "create_payment_method"
	StepCreateCustomer      = "create_customer"
	StepAttachPaymentMethod = "attach_payment_method"
	StepCreateSubscription  = "create_subscription"
)

// ProvisionResult is the body returned for a successful signup.
type ProvisionResult struct {
	Customer       *stripe.Customer `json:"customer_id"`
	SubscriptionID string           `json:"plan"`
}

// OrphanReporter records resources that could not be rolled back.
type OrphanReporter interface {
	ReportOrphan(ctx context.Context, rec queue.OrphanRecord) error
}

// ProvisionerConfig configures a Provisioner.
type ProvisionerConfig struct {
	PlanID     string
	Compensate bool
	Orphans    OrphanReporter
	Logger     *slog.Logger
}

// Provisioner runs the four-step signup sequence against a PaymentSession.
type Provisioner struct {
	planID     string
	compensate bool
	orphans    OrphanReporter
	logger     *slog.Logger
}

// NewProvisioner creates a Provisioner. A nil Orphans discards records.
func NewProvisioner(cfg ProvisionerConfig) *Provisioner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	orphans := cfg.Orphans
	if orphans == nil {
		orphans = queue.NoopOrphanReporter{}
	}
	return &Provisioner{
		planID:     cfg.PlanID,
		compensate: cfg.Compensate,
		orphans:    orphans,
		logger:     logger,
	}
}

// progress tracks what has been created so far in one Provision call.
type progress struct {
	paymentMethodID string
	customerID      string
	attached        bool
}

// Provision creates a payment method, a customer, attaches the two and
// subscribes the customer to the configured plan. Every successful call
// creates new resources; there is no lookup or dedup.
//
// When a step fails after resources were created and compensation is on, the
// created resources are undone in reverse order. The step error is returned
// either way.
func (p *Provisioner) Provision(ctx context.Context, session external.PaymentSession, req types.SignupRequest) (*ProvisionResult, error) {
	var st progress

	pmID, err := session.CreateCardPaymentMethod(ctx, req.CardData)
	if err != nil {
		return nil, p.fail(ctx, session, st, StepCreatePaymentMethod, err)
	}
	st.paymentMethodID = pmID

	customer, err := session.CreateCustomer(ctx, req.Email, req.Attributes)
	if err != nil {
		return nil, p.fail(ctx, session, st, StepCreateCustomer, err)
	}
	st.customerID = customer.ID

	if err := session.AttachPaymentMethod(ctx, pmID, customer.ID); err != nil {
		return nil, p.fail(ctx, session, st, StepAttachPaymentMethod, err)
	}
	st.attached = true

	subID, err := session.CreateSubscription(ctx, customer.ID, p.planID, pmID)
	if err != nil {
		return nil, p.fail(ctx, session, st, StepCreateSubscription, err)
	}

	p.logger.InfoContext(ctx, "signup provisioned",
		"customer_id", customer.ID,
		"payment_method_id", pmID,
		"subscription_id", subID,
		"card_last4", req.CardData.Last4(),
	)

	return &ProvisionResult{Customer: customer, SubscriptionID: subID}, nil
}

// fail annotates err with the failing step and runs compensation.
func (p *Provisioner) fail(ctx context.Context, session external.PaymentSession, st progress, step string, err error) error {
	err = withStep(step, err)

	if st.paymentMethodID == "" && st.customerID == "" {
		return err
	}

	if !p.compensate {
		p.logger.WarnContext(ctx, "partial signup left in place",
			"failed_step", step,
			"customer_id", st.customerID,
			"payment_method_id", st.paymentMethodID,
		)
		return err
	}

	var undoErrs []error
	if st.attached {
		if dErr := session.DetachPaymentMethod(ctx, st.paymentMethodID); dErr != nil {
			undoErrs = append(undoErrs, dErr)
		}
	}
	if st.customerID != "" {
		if dErr := session.DeleteCustomer(ctx, st.customerID); dErr != nil {
			undoErrs = append(undoErrs, dErr)
		}
	}

	if len(undoErrs) == 0 {
		if st.attached || st.customerID != "" {
			p.logger.InfoContext(ctx, "partial signup rolled back",
				"failed_step", step,
				"customer_id", st.customerID,
				"payment_method_detached", st.attached,
			)
		}
		// An unattached payment method cannot be deleted through the API.
		if !st.attached && st.paymentMethodID != "" {
			p.logger.InfoContext(ctx, "unattached payment method left in place",
				"failed_step", step,
				"payment_method_id", st.paymentMethodID,
			)
		}
		return err
	}

	undoErr := errors.Join(undoErrs...)
	p.logger.WarnContext(ctx, "signup compensation failed",
		"failed_step", step,
		"customer_id", st.customerID,
		"payment_method_id", st.paymentMethodID,
		"error", undoErr.Error(),
	)

	rec := queue.OrphanRecord{
		InvocationID:    types.GetInvocationID(ctx),
		CustomerID:      st.customerID,
		PaymentMethodID: st.paymentMethodID,
		FailedStep:      step,
		Reason:          undoErr.Error(),
	}
	if rErr := p.orphans.ReportOrphan(ctx, rec); rErr != nil {
		p.logger.WarnContext(ctx, "failed to report orphaned resources",
			"customer_id", st.customerID,
			"payment_method_id", st.paymentMethodID,
			"error", rErr.Error(),
		)
	}
	return err
}

// withStep records the failing step on the error. Errors that are not yet
// AppErrors become upstream_stripe_error.
func withStep(step string, err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.WithDetails(map[string]any{"step": step})
	}
	return types.NewAppErrorWithDetails(
		types.ErrCodeUpstreamStripe,
		fmt.Sprintf("%s failed", step),
		err,
		map[string]any{"step": step},
	)
}
