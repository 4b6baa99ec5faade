//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

const defaultHTTPBase = "http://localhost:38080"

type httpClient struct {
	baseURL string
	client  *http.Client
}

func newHTTPClient(baseURL string) *httpClient {
	return &httpClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (c *httpClient) doJSON(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	return c.doJSONWithAPIKey(t, method, path, body, paymentsCallerAPIKey())
}

func (c *httpClient) doJSONWithAPIKey(t *testing.T, method, path string, body any, apiKey string) (*http.Response, []byte) {
	t.Helper()

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal failed: %v", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	target := path
	if !strings.HasPrefix(path, "http") {
		target = c.baseURL + path
	}
	req, err := http.NewRequest(method, target, reqBody)
	if err != nil {
		t.Fatalf("new request failed: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("http request failed: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response failed: %v", err)
	}

	return resp, bodyBytes
}

func waitForHTTP(baseURL string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 2 * time.Second}
	for time.Now().Before(deadline) {
		req, _ := http.NewRequest(http.MethodGet, baseURL+"/health", nil)
		req.Header.Set("X-API-Key", paymentsCallerAPIKey())
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("http service not ready at %s", baseURL)
}

type paymentPayload struct {
	Payment struct {
		ID          int64  `json:"id"`
		Status      string `json:"status"`
		StatusItems []struct {
			Status string `json:"status"`
		} `json:"status_items"`
		GoCardless *struct {
			RedirectFlowID string `json:"redirect_flow_id"`
			MandateID      string `json:"mandate_id"`
		} `json:"gocardless"`
	} `json:"payment"`
	RedirectURL string `json:"redirect_url"`
}

func decodePayment(t *testing.T, body []byte) paymentPayload {
	t.Helper()
	var payload paymentPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("json unmarshal failed: %v body=%s", err, string(body))
	}
	return payload
}

// returnURLFor finds the signed success URL the service handed to the
// provider for the payment and appends the flow id like the provider does.
func returnURLFor(t *testing.T, paymentID int64) (string, string) {
	t.Helper()
	marker := fmt.Sprintf("/gocardless/return/%d/", paymentID)
	fakeProvider.mu.Lock()
	defer fakeProvider.mu.Unlock()
	for _, flow := range fakeProvider.flows {
		if strings.Contains(flow.successRedirectURL, marker) {
			return flow.successRedirectURL + "?redirect_flow_id=" + flow.id, flow.id
		}
	}
	t.Fatalf("no redirect flow recorded for payment %d", paymentID)
	return "", ""
}

func TestPaymentsE2E(t *testing.T) {
	httpBase := os.Getenv("PAYMENTS_HTTP_URL")
	if httpBase == "" {
		httpBase = defaultHTTPBase
	}

	if err := waitForHTTP(httpBase, 30*time.Second); err != nil {
		t.Fatalf("http not ready: %v", err)
	}

	client := newHTTPClient(httpBase)
	state := struct {
		paymentID  int64
		rejectedID int64
		returnURL  string
		flowID     string
	}{}

	t.Run("HTTPUnauthorizedMissingAPIKey", func(t *testing.T) {
		resp, _ := client.doJSONWithAPIKey(t, http.MethodGet, "/health", nil, "")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", resp.StatusCode)
		}
	})

	t.Run("HTTPForbiddenInsufficientAccess", func(t *testing.T) {
		resp, _ := client.doJSONWithAPIKey(t, http.MethodGet, "/health", nil, paymentsNoAccessAPIKey())
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", resp.StatusCode)
		}
	})

	t.Run("HTTPCreatePaymentValidation", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodPost, "/payments", map[string]any{
			"currency_code": "EUR",
			"line_items":    []map[string]any{{"name": "nothing", "unit_amount": "5", "quantity": 0}},
		})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d body=%s", resp.StatusCode, string(body))
		}
	})

	t.Run("HTTPCreatePayment", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodPost, "/payments", map[string]any{
			"currency_code": "GBP",
			"description":   "e2e membership",
			"line_items": []map[string]any{
				{"name": "joining_fee", "description": "Joining fee", "unit_amount": "10.005", "quantity": 1},
				{"name": "membership", "description": "Monthly membership", "unit_amount": "4.50", "quantity": 2, "recurrence": map[string]any{"interval_unit": "monthly", "day_of_month": 4}},
			},
			"context": map[string]string{"first_name": "Ada", "last_name": "Lovelace", "email": "ada@example.com"},
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("expected 201, got %d body=%s", resp.StatusCode, string(body))
		}

		payload := decodePayment(t, body)
		if payload.Payment.ID == 0 || payload.Payment.Status != "gocardless_payment_redirect_flow_created" {
			t.Fatalf("unexpected payment: %s", string(body))
		}
		if !strings.HasPrefix(payload.RedirectURL, "https://pay-sandbox.gocardless.test/flow/") {
			t.Fatalf("unexpected redirect url %q", payload.RedirectURL)
		}
		state.paymentID = payload.Payment.ID
		state.returnURL, state.flowID = returnURLFor(t, state.paymentID)
	})

	t.Run("HTTPReturnWithForgedSignature", func(t *testing.T) {
		if state.returnURL == "" {
			t.Skip("payment not created")
		}
		forged := fmt.Sprintf("%s/gocardless/return/%d/forged?redirect_flow_id=%s", httpBase, state.paymentID, state.flowID)
		resp, _ := client.doJSONWithAPIKey(t, http.MethodGet, forged, nil, "")
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", resp.StatusCode)
		}
	})

	t.Run("HTTPRedirectReturnCompletesPayment", func(t *testing.T) {
		if state.returnURL == "" {
			t.Skip("payment not created")
		}
		resp, body := client.doJSONWithAPIKey(t, http.MethodGet, state.returnURL, nil, "")
		if resp.StatusCode != http.StatusFound && resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 302 or 200, got %d body=%s", resp.StatusCode, string(body))
		}

		resp, body = client.doJSON(t, http.MethodGet, fmt.Sprintf("/payments/%d", state.paymentID), nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%s", resp.StatusCode, string(body))
		}
		payload := decodePayment(t, body)
		if payload.Payment.Status != "payment_status_success" {
			t.Fatalf("expected success, got %s", payload.Payment.Status)
		}
		if len(payload.Payment.StatusItems) != 5 {
			t.Fatalf("expected full status history, got %+v", payload.Payment.StatusItems)
		}
		if payload.Payment.GoCardless == nil || payload.Payment.GoCardless.MandateID == "" {
			t.Fatalf("expected mandate on payment, got %s", string(body))
		}

		charges := fakeProvider.chargesForMandate(payload.Payment.GoCardless.MandateID)
		if len(charges) != 2 {
			t.Fatalf("expected one payment and one subscription, got %+v", charges)
		}
		if charges[0].kind != "payment" || charges[0].amount != 1001 || charges[0].currency != "GBP" {
			t.Fatalf("unexpected one-off charge %+v", charges[0])
		}
		if charges[1].kind != "subscription" || charges[1].amount != 900 {
			t.Fatalf("unexpected subscription charge %+v", charges[1])
		}
	})

	t.Run("HTTPRedirectReturnIsIdempotent", func(t *testing.T) {
		if state.returnURL == "" {
			t.Skip("payment not created")
		}
		before := len(fakeProvider.chargesForMandate("MD" + strings.TrimPrefix(state.flowID, "RE")))
		resp, _ := client.doJSONWithAPIKey(t, http.MethodGet, state.returnURL, nil, "")
		if resp.StatusCode != http.StatusFound && resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 302 or 200, got %d", resp.StatusCode)
		}
		after := len(fakeProvider.chargesForMandate("MD" + strings.TrimPrefix(state.flowID, "RE")))
		if before != after {
			t.Fatalf("expected no new charges on repeated return, got %d -> %d", before, after)
		}
	})

	t.Run("HTTPRedirectReturnProviderRejects", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodPost, "/payments", map[string]any{
			"currency_code": "EUR",
			"description":   rejectDescription,
			"line_items":    []map[string]any{{"name": "gift", "unit_amount": "5", "quantity": 1}},
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("expected 201, got %d body=%s", resp.StatusCode, string(body))
		}
		state.rejectedID = decodePayment(t, body).Payment.ID

		returnURL, _ := returnURLFor(t, state.rejectedID)
		resp, body = client.doJSONWithAPIKey(t, http.MethodGet, returnURL, nil, "")
		if resp.StatusCode != http.StatusFound && resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 302 or 200, got %d body=%s", resp.StatusCode, string(body))
		}

		resp, body = client.doJSON(t, http.MethodGet, fmt.Sprintf("/payments/%d", state.rejectedID), nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		if status := decodePayment(t, body).Payment.Status; status != "payment_status_failed" {
			t.Fatalf("expected failed payment, got %s", status)
		}
	})

	t.Run("HTTPDeleteFinishedPayment", func(t *testing.T) {
		if state.rejectedID == 0 {
			t.Skip("rejected payment not created")
		}
		resp, body := client.doJSON(t, http.MethodDelete, fmt.Sprintf("/payments/%d", state.rejectedID), nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%s", resp.StatusCode, string(body))
		}
		resp, _ = client.doJSON(t, http.MethodGet, fmt.Sprintf("/payments/%d", state.rejectedID), nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
		}
	})
}
