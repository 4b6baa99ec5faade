package gocardless

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/entity"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/factory"
)

const (
	LiveEndpoint    = "https://api.gocardless.com/"
	SandboxEndpoint = "https://api-sandbox.gocardless.com/"
	APIVersion      = "2015-07-06"

	defaultTimeout = 30 * time.Second
)

var ErrTransport = errors.New("gocardless transport error")

type Client struct {
	http   *resty.Client
	logger logrus.FieldLogger
}

func NewClient(endpoint, accessToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := resty.New().
		SetBaseURL(endpoint).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetAuthToken(accessToken).
		SetHeader("GoCardless-Version", APIVersion).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		http:   httpClient,
		logger: factory.NewModuleLogger("gocardless-client"),
	}
}

// NewClientFromConfig picks the sandbox or live endpoint from the method
// configuration. A configured endpoint override takes precedence.
func NewClientFromConfig(cfg entity.MethodConfig, timeout time.Duration) *Client {
	endpoint := LiveEndpoint
	if cfg.TestMode {
		endpoint = SandboxEndpoint
	}
	if cfg.EndpointOverride != "" {
		endpoint = cfg.EndpointOverride
	}
	return NewClient(endpoint, cfg.AccessToken, timeout)
}

func (c *Client) Post(ctx context.Context, path string, query url.Values, body, out interface{}) error {
	return c.send(ctx, http.MethodPost, path, query, body, out)
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.send(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) CreateRedirectFlow(ctx context.Context, req CreateRedirectFlowRequest) (*RedirectFlow, error) {
	var resp redirectFlowEnvelope
	if err := c.Post(ctx, "redirect_flows", nil, createRedirectFlowEnvelope{RedirectFlows: req}, &resp); err != nil {
		return nil, err
	}
	return &resp.RedirectFlows, nil
}

func (c *Client) CompleteRedirectFlow(ctx context.Context, redirectFlowID, sessionToken string) (*RedirectFlow, error) {
	body := completeRedirectFlowEnvelope{}
	body.Data.SessionToken = sessionToken

	var resp redirectFlowEnvelope
	path := "redirect_flows/" + url.PathEscape(redirectFlowID) + "/actions/complete"
	if err := c.Post(ctx, path, nil, body, &resp); err != nil {
		return nil, err
	}
	return &resp.RedirectFlows, nil
}

func (c *Client) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*Payment, error) {
	var resp paymentEnvelope
	if err := c.Post(ctx, "payments", nil, createPaymentEnvelope{Payments: req}, &resp); err != nil {
		return nil, err
	}
	return &resp.Payments, nil
}

func (c *Client) CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*Subscription, error) {
	var resp subscriptionEnvelope
	if err := c.Post(ctx, "subscriptions", nil, createSubscriptionEnvelope{Subscriptions: req}, &resp); err != nil {
		return nil, err
	}
	return &resp.Subscriptions, nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	req := c.http.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParamsFromValues(query)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}

	if resp.IsError() || resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		httpErr := &HTTPError{
			StatusCode: resp.StatusCode(),
			Status:     resp.Status(),
			Body:       resp.Body(),
		}
		typed, ok := Classify(httpErr)
		if !ok {
			return httpErr
		}
		c.logger.WithFields(logrus.Fields{
			"method":      method,
			"path":        path,
			"status_code": httpErr.StatusCode,
			"error_type":  string(typed.Kind),
			"error_code":  typed.Code,
			"error_body":  string(httpErr.Body),
		}).WithError(typed).Error("gocardless api error")
		return typed
	}

	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
