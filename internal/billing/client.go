// Package billing is the synchronous dependency invoker for the billing
// service. It performs exactly one bounded call per invocation; retry policy
// belongs to the orchestrator, because re-invoking a non-idempotent
// account-creation call needs orchestration-level idempotency keys.
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	dErrors "careflow/pkg/domain-errors"
)

// Account is the billing service's acknowledgement of an account creation.
type Account struct {
	AccountID string `json:"accountId"`
}

// CreateAccountRequest is the ephemeral cross-service payload. It is never
// persisted; it exists only for the duration of the call.
type CreateAccountRequest struct {
	PatientID string `json:"patientId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
}

// Client calls the billing service over HTTP with a per-call deadline.
// Failures map onto three kinds: CodeUnavailable (connection-level),
// CodeTimeout (deadline exceeded), CodeRejected (the dependency refused).
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		timeout: timeout,
		http:    &http.Client{},
	}
}

// CreateAccount issues one synchronous billing-account creation call.
func (c *Client) CreateAccount(ctx context.Context, patientID uuid.UUID, name, email string) (*Account, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(CreateAccountRequest{
		PatientID: patientID.String(),
		Name:      name,
		Email:     email,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode billing request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/billing/accounts", bytes.NewReader(body))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "build billing request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, mapTransportError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var account Account
		if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "decode billing response")
		}
		return &account, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, dErrors.New(dErrors.CodeRejected, rejectionMessage(resp))
	default:
		return nil, dErrors.New(dErrors.CodeUnavailable,
			fmt.Sprintf("billing service returned status %d", resp.StatusCode))
	}
}

func mapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "billing call deadline exceeded")
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "billing call deadline exceeded")
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, "billing service unreachable")
}

func rejectionMessage(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil || len(raw) == 0 {
		return fmt.Sprintf("billing service rejected request with status %d", resp.StatusCode)
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return fmt.Sprintf("billing service rejected request with status %d", resp.StatusCode)
}
