package payments

import (
	"context"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
)

// StripeProcessor implements Processor on Stripe PaymentIntents with manual
// capture: Hold authorizes the fare at trip completion, Capture settles it
// once the rider confirms, Cancel releases the authorization.
type StripeProcessor struct{}

func NewStripeProcessor(apiKey string) *StripeProcessor {
	stripe.Key = apiKey
	return &StripeProcessor{}
}

func (s *StripeProcessor) Hold(ctx context.Context, amount int64, currency, riderID string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amount),
		Currency:      stripe.String(currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	params.Context = ctx
	params.AddMetadata("rider_id", riderID)
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

func (s *StripeProcessor) Capture(ctx context.Context, sessionID string) error {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	_, err := paymentintent.Capture(sessionID, params)
	return err
}

func (s *StripeProcessor) Cancel(ctx context.Context, sessionID string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	_, err := paymentintent.Cancel(sessionID, params)
	return err
}
