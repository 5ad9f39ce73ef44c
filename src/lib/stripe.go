package lib

import (
	"context"
	"os"

	"github.com/stripe/stripe-go/v82"
)

var stripeClient *stripe.Client

func GetStripeClient() *stripe.Client {
	if stripeClient != nil {
		return stripeClient
	}
	apiKey := os.Getenv("STRIPE_SECRET_KEY")
	sc := stripe.NewClient(apiKey)
	stripeClient = sc

	return sc
}

// NewStripeClient Replace stripe instance with custom client implementation
func NewStripeClient(c *stripe.Client) {
	stripeClient = c
}

type CheckoutLineItem struct {
	Name      string
	UnitCents int64
	Currency  string
}

// CreateCheckoutSession requests a hosted checkout page for one ticket
// group. Ticket ids are not stored in metadata (Stripe caps metadata at 500
// chars); the session id persisted on the tickets is the correlation key.
func CreateCheckoutSession(ctx context.Context, items []CheckoutLineItem, successURL, cancelURL string, metadata map[string]string) (*stripe.CheckoutSession, error) {
	sc := GetStripeClient()
	lineItems := make([]*stripe.CheckoutSessionCreateLineItemParams, 0, len(items))
	for _, item := range items {
		lineItems = append(lineItems, &stripe.CheckoutSessionCreateLineItemParams{
			PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
				Currency: stripe.String(item.Currency),
				ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				UnitAmount: stripe.Int64(item.UnitCents),
			},
			Quantity: stripe.Int64(1),
		})
	}
	params := stripe.CheckoutSessionCreateParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          lineItems,
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(successURL),
		CancelURL:          stripe.String(cancelURL),
		Metadata:           metadata,
	}
	return sc.V1CheckoutSessions.Create(ctx, &params)
}

func RetrieveCheckoutSession(ctx context.Context, sessionId string) (*stripe.CheckoutSession, error) {
	sc := GetStripeClient()
	return sc.V1CheckoutSessions.Retrieve(ctx, sessionId, nil)
}

// SessionPaymentIntentID returns the payment intent id attached to a
// session, tolerating unexpanded or absent intents.
func SessionPaymentIntentID(cs *stripe.CheckoutSession) string {
	if cs == nil || cs.PaymentIntent == nil {
		return ""
	}
	return cs.PaymentIntent.ID
}
