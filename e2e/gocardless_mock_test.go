//go:build e2e
// +build e2e

package e2e

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	gocardlessMockAddr = "127.0.0.1:38084"

	// Redirect flows created with this description fail on completion.
	rejectDescription = "reject-on-complete"
)

var fakeProvider *fakeGoCardless

type fakeFlow struct {
	id                 string
	description        string
	sessionToken       string
	successRedirectURL string
}

type fakeCharge struct {
	kind     string
	amount   int64
	currency string
	mandate  string
	metadata map[string]string
}

// fakeGoCardless answers the provider endpoints the service calls, with the
// same envelopes and error bodies as the real API.
type fakeGoCardless struct {
	mu      sync.Mutex
	seq     int
	flows   map[string]*fakeFlow
	charges []fakeCharge
	server  *http.Server
}

func startFakeGoCardless(addr string) (*fakeGoCardless, error) {
	f := &fakeGoCardless{flows: map[string]*fakeFlow{}}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.POST("/redirect_flows", f.createRedirectFlow)
	e.POST("/redirect_flows/:id/actions/complete", f.completeRedirectFlow)
	e.POST("/payments", f.createPayment)
	e.POST("/subscriptions", f.createSubscription)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	f.server = &http.Server{Handler: e}
	go func() {
		_ = f.server.Serve(listener)
	}()
	return f, nil
}

func (f *fakeGoCardless) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return f.server.Shutdown(ctx)
}

func (f *fakeGoCardless) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s%04d", prefix, f.seq)
}

func (f *fakeGoCardless) chargesForMandate(mandate string) []fakeCharge {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]fakeCharge, 0)
	for _, charge := range f.charges {
		if charge.mandate == mandate {
			result = append(result, charge)
		}
	}
	return result
}

func (f *fakeGoCardless) createRedirectFlow(ctx echo.Context) error {
	var body struct {
		RedirectFlows struct {
			Description        string `json:"description"`
			SessionToken       string `json:"session_token"`
			SuccessRedirectURL string `json:"success_redirect_url"`
		} `json:"redirect_flows"`
	}
	if err := ctx.Bind(&body); err != nil {
		return providerError(ctx, http.StatusBadRequest, "invalid_api_usage", "invalid json")
	}
	if body.RedirectFlows.SessionToken == "" || body.RedirectFlows.SuccessRedirectURL == "" {
		return providerError(ctx, http.StatusUnprocessableEntity, "validation_failed", "session_token and success_redirect_url are required")
	}

	f.mu.Lock()
	flow := &fakeFlow{
		id:                 f.nextID("RE"),
		description:        body.RedirectFlows.Description,
		sessionToken:       body.RedirectFlows.SessionToken,
		successRedirectURL: body.RedirectFlows.SuccessRedirectURL,
	}
	f.flows[flow.id] = flow
	f.mu.Unlock()

	return ctx.JSON(http.StatusCreated, map[string]any{
		"redirect_flows": map[string]any{
			"id":                   flow.id,
			"description":          flow.description,
			"session_token":        flow.sessionToken,
			"success_redirect_url": flow.successRedirectURL,
			"redirect_url":         "https://pay-sandbox.gocardless.test/flow/" + flow.id,
			"links":                map[string]any{},
		},
	})
}

func (f *fakeGoCardless) completeRedirectFlow(ctx echo.Context) error {
	var body struct {
		Data struct {
			SessionToken string `json:"session_token"`
		} `json:"data"`
	}
	if err := ctx.Bind(&body); err != nil {
		return providerError(ctx, http.StatusBadRequest, "invalid_api_usage", "invalid json")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	flow, ok := f.flows[ctx.Param("id")]
	if !ok {
		return providerError(ctx, http.StatusNotFound, "invalid_api_usage", "redirect flow not found")
	}
	if flow.sessionToken != body.Data.SessionToken {
		return providerError(ctx, http.StatusUnprocessableEntity, "invalid_state", "session token does not match")
	}
	if flow.description == rejectDescription {
		return providerError(ctx, http.StatusUnprocessableEntity, "invalid_state", "redirect flow already completed")
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"redirect_flows": map[string]any{
			"id": flow.id,
			"links": map[string]any{
				"mandate":  "MD" + strings.TrimPrefix(flow.id, "RE"),
				"customer": "CU" + strings.TrimPrefix(flow.id, "RE"),
			},
		},
	})
}

type fakeChargeBody struct {
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	IntervalUnit string            `json:"interval_unit"`
	Metadata     map[string]string `json:"metadata"`
	Links        struct {
		Mandate string `json:"mandate"`
	} `json:"links"`
}

func (f *fakeGoCardless) createPayment(ctx echo.Context) error {
	var body struct {
		Payments fakeChargeBody `json:"payments"`
	}
	if err := ctx.Bind(&body); err != nil {
		return providerError(ctx, http.StatusBadRequest, "invalid_api_usage", "invalid json")
	}
	id := f.recordCharge("payment", body.Payments, "PM")
	return ctx.JSON(http.StatusCreated, map[string]any{
		"payments": map[string]any{"id": id, "amount": body.Payments.Amount, "currency": body.Payments.Currency, "status": "pending_submission"},
	})
}

func (f *fakeGoCardless) createSubscription(ctx echo.Context) error {
	var body struct {
		Subscriptions fakeChargeBody `json:"subscriptions"`
	}
	if err := ctx.Bind(&body); err != nil {
		return providerError(ctx, http.StatusBadRequest, "invalid_api_usage", "invalid json")
	}
	id := f.recordCharge("subscription", body.Subscriptions, "SB")
	return ctx.JSON(http.StatusCreated, map[string]any{
		"subscriptions": map[string]any{
			"id":            id,
			"amount":        body.Subscriptions.Amount,
			"currency":      body.Subscriptions.Currency,
			"interval_unit": body.Subscriptions.IntervalUnit,
			"status":        "active",
		},
	})
}

func (f *fakeGoCardless) recordCharge(kind string, body fakeChargeBody, prefix string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.charges = append(f.charges, fakeCharge{
		kind:     kind,
		amount:   body.Amount,
		currency: body.Currency,
		mandate:  body.Links.Mandate,
		metadata: body.Metadata,
	})
	return f.nextID(prefix)
}

func providerError(ctx echo.Context, status int, errorType, message string) error {
	return ctx.JSON(status, map[string]any{
		"error": map[string]any{
			"type":    errorType,
			"message": message,
			"code":    status,
			"errors":  []map[string]any{{"message": message}},
		},
	})
}
