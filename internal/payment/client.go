package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// KV is one entry of a charge's free-form metadata list. The provider
// round-trips it unchanged through the completion webhook, which is how
// the transaction id and product linkage survive the async hop.
type KV struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Payer identifies the buyer on the charge.
type Payer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// ChargeRequest is the outbound charge creation payload.
// Value is in integer cents, per the provider's wire format.
type ChargeRequest struct {
	CorrelationID  string `json:"correlationID"`
	Value          int64  `json:"value"`
	Comment        string `json:"comment"`
	ExpiresIn      int    `json:"expiresIn"`
	AdditionalInfo []KV   `json:"additionalInfo"`
	Payer          Payer  `json:"payer"`
}

// Charge is the provider's view of a created charge.
type Charge struct {
	CorrelationID  string `json:"correlationID"`
	Status         string `json:"status"`
	Value          int64  `json:"value"`
	Comment        string `json:"comment"`
	BRCode         string `json:"brCode"`
	QRCodeImage    string `json:"qrCodeImage"`
	PaymentLinkURL string `json:"paymentLinkUrl"`
	ExpiresIn      int    `json:"expiresIn"`
	AdditionalInfo []KV   `json:"additionalInfo"`
}

// Client abstracts the PIX payment provider.
// Mocking this interface in tests gives full control over provider
// behaviour without making real HTTP calls.
type Client interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
}

// OpenPixClient creates charges through the OpenPix REST API.
type OpenPixClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewOpenPixClient(baseURL, apiKey string, timeout time.Duration) *OpenPixClient {
	return &OpenPixClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chargeEnvelope struct {
	Charge Charge `json:"charge"`
}

// CreateCharge posts the charge and unwraps the response envelope.
// return_existing makes repeated correlation ids idempotent on the
// provider side.
func (c *OpenPixClient) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal charge: %w", err)
	}

	url := c.baseURL + "/api/v1/charge?return_existing=true"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send charge request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected provider status: %d", resp.StatusCode)
	}

	var env chargeEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode charge response: %w", err)
	}
	return &env.Charge, nil
}

// compile-time check that OpenPixClient implements Client
var _ Client = (*OpenPixClient)(nil)

// Cents converts a decimal currency amount to the provider's integer
// cents representation.
func Cents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
