// AngelaMos | 2026
// payment.go

package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/careerpilot/ledger-service/internal/config"
)

// VerifiedPayment is the gateway's answer for a payment reference.
// AmountMinor is in the smallest currency unit. Metadata may carry an
// explicit "credits" value set at checkout time.
type VerifiedPayment struct {
	Completed   bool
	AmountMinor int64
	Metadata    map[string]string
}

// Verifier checks a payment reference with the external gateway. Calls
// must resolve definitively within the configured timeout; a timeout is a
// verification failure, never an assumed success.
type Verifier interface {
	Verify(ctx context.Context, reference string) (VerifiedPayment, error)
}

type paystackVerifier struct {
	client    *http.Client
	baseURL   string
	secretKey string
}

func NewPaystackVerifier(cfg config.PaymentConfig) Verifier {
	return &paystackVerifier{
		client:    &http.Client{Timeout: cfg.VerifyTimeout},
		baseURL:   cfg.BaseURL,
		secretKey: cfg.SecretKey,
	}
}

type paystackVerifyResponse struct {
	Status bool `json:"status"`
	Data   struct {
		Status   string            `json:"status"`
		Amount   int64             `json:"amount"`
		Metadata map[string]string `json:"metadata"`
	} `json:"data"`
}

func (v *paystackVerifier) Verify(
	ctx context.Context,
	reference string,
) (VerifiedPayment, error) {
	endpoint := fmt.Sprintf(
		"%s/transaction/verify/%s",
		v.baseURL,
		url.PathEscape(reference),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return VerifiedPayment{}, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+v.secretKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return VerifiedPayment{}, fmt.Errorf("call payment gateway: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // response body close

	if resp.StatusCode != http.StatusOK {
		return VerifiedPayment{}, fmt.Errorf(
			"payment gateway returned status %d",
			resp.StatusCode,
		)
	}

	var body paystackVerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return VerifiedPayment{}, fmt.Errorf("decode verify response: %w", err)
	}

	return VerifiedPayment{
		Completed:   body.Status && body.Data.Status == "success",
		AmountMinor: body.Data.Amount,
		Metadata:    body.Data.Metadata,
	}, nil
}
