package payments

import "context"

// Processor opens and settles payment sessions for completed trips. The
// trip lifecycle only stores the returned session handle; everything else
// about the payment is the processor's business.
type Processor interface {
	// Hold opens a session holding amount (in the currency's minor unit) for
	// the rider and returns its opaque handle.
	Hold(ctx context.Context, amount int64, currency, riderID string) (string, error)
	// Capture settles a held session.
	Capture(ctx context.Context, sessionID string) error
	// Cancel releases a held session without charging.
	Cancel(ctx context.Context, sessionID string) error
}

// Noop is used when no Stripe key is configured; it hands out fake session
// handles so the trip flow still completes in local runs.
type Noop struct{}

func (Noop) Hold(_ context.Context, _ int64, _, riderID string) (string, error) {
	return "noop-session-" + riderID, nil
}

func (Noop) Capture(context.Context, string) error { return nil }

func (Noop) Cancel(context.Context, string) error { return nil }
