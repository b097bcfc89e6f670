package twilio

import (
	"context"
	"dispatch-server/internal/observability"
	"errors"
	"fmt"

	twilioSDK "github.com/twilio/twilio-go"
	lookups "github.com/twilio/twilio-go/rest/lookups/v2"
)

// ErrInvalidPhoneNumber indicates the number failed carrier lookup validation
var ErrInvalidPhoneNumber = errors.New("invalid phone number")

// Client validates phone numbers through Twilio Lookups before dialing
type Client struct {
	client *twilioSDK.RestClient
	logger *observability.Logger
}

// NewClient creates a new Twilio lookup client
func NewClient(accountSID, authToken string, logger *observability.Logger) *Client {
	client := twilioSDK.NewRestClientWithParams(twilioSDK.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &Client{
		client: client,
		logger: logger,
	}
}

// ValidatePhoneNumber checks the number against Twilio Lookups.
// Returns ErrInvalidPhoneNumber when the carrier reports it as invalid.
func (c *Client) ValidatePhoneNumber(ctx context.Context, phoneNumber string) error {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "phone_number", Value: phoneNumber},
	)

	resp, err := c.client.LookupsV2.FetchPhoneNumber(phoneNumber, &lookups.FetchPhoneNumberParams{})
	if err != nil {
		c.logger.Error(ctx, "failed to look up phone number", err)
		return fmt.Errorf("failed to look up phone number: %w", err)
	}

	if resp.Valid == nil || !*resp.Valid {
		c.logger.Info(ctx, "phone number failed lookup validation")
		return ErrInvalidPhoneNumber
	}

	return nil
}
