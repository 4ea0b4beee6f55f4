package external

import (
	"context"

	stripe "github.com/stripe/stripe-go/v76"

	"cardsignup/internal/types"
)

// PaymentGateway opens credential-scoped sessions with the payment processor.
// The key is supplied per session; nothing is stored process-wide.
type PaymentGateway interface {
	Session(key types.SecretString) PaymentSession
}

// PaymentSession is the set of processor calls made during one signup. Each
// method is a single blocking request with no retries.
type PaymentSession interface {
	// CreateCardPaymentMethod creates a card payment method and returns its ID.
	CreateCardPaymentMethod(ctx context.Context, card types.CardData) (string, error)

	// CreateCustomer creates a customer with the given email and metadata.
	CreateCustomer(ctx context.Context, email string, metadata map[string]string) (*stripe.Customer, error)

	// AttachPaymentMethod attaches a payment method to a customer.
	AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) error

	// CreateSubscription subscribes the customer to planID with the payment
	// method as default and returns the subscription ID.
	CreateSubscription(ctx context.Context, customerID, planID, paymentMethodID string) (string, error)

	// DetachPaymentMethod undoes AttachPaymentMethod.
	DetachPaymentMethod(ctx context.Context, paymentMethodID string) error

	// DeleteCustomer undoes CreateCustomer.
	DeleteCustomer(ctx context.Context, customerID string) error
}
