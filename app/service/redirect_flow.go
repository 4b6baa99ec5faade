package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/billing"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/entity"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/factory"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/gocardless"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/lock"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/repository"
	"github.com/vibast-solutions/ms-go-gocardless-payments/config"
)

const (
	msgEmptyLineItems      = "Can’t process payments without non-empty line items."
	msgUnsupportedInterval = "Unsupported recurrence interval_unit: %s."
	msgOneOffNotAllowed    = "The payment method is configured to not handle one-off payments."
	msgUnsupportedCurrency = "Unsupported currency: %s."
)

type createPaymentRequest interface {
	GetCurrencyCode() string
	GetDescription() string
	GetLineItems() []*entity.LineItem
	GetCustomerData() entity.CustomerData
	GetContext() map[string]string
}

type paymentRepository interface {
	Save(ctx context.Context, payment *entity.Payment) error
	Load(ctx context.Context, id int64) (*entity.Payment, error)
	Delete(ctx context.Context, id int64) error
	ListStale(ctx context.Context, status entity.PaymentStatus, cutoff time.Time) ([]*entity.Payment, error)
}

type gocardlessClient interface {
	CreateRedirectFlow(ctx context.Context, req gocardless.CreateRedirectFlowRequest) (*gocardless.RedirectFlow, error)
	CompleteRedirectFlow(ctx context.Context, redirectFlowID, sessionToken string) (*gocardless.RedirectFlow, error)
	CreatePayment(ctx context.Context, req gocardless.CreatePaymentRequest) (*gocardless.Payment, error)
	CreateSubscription(ctx context.Context, req gocardless.CreateSubscriptionRequest) (*gocardless.Subscription, error)
}

type paymentLocker interface {
	Acquire(ctx context.Context, paymentID int64) (func(), error)
}

type returnURLSigner interface {
	Sign(paymentID int64) string
}

type ExecuteResult struct {
	Payment     *entity.Payment
	Status      entity.PaymentStatus
	RedirectURL string
}

type RedirectFlowService struct {
	paymentRepo paymentRepository
	client      gocardlessClient
	locker      paymentLocker
	signer      returnURLSigner
	reporter    failureReporter
	method      entity.MethodConfig
	cfg         config.PaymentsConfig
	logger      logrus.FieldLogger

	now      func() time.Time
	newToken func() string
}

func NewRedirectFlowService(
	paymentRepo paymentRepository,
	client gocardlessClient,
	locker paymentLocker,
	signer returnURLSigner,
	method entity.MethodConfig,
	cfg config.PaymentsConfig,
) *RedirectFlowService {
	if locker == nil {
		locker = lock.NoopLock{}
	}
	if method.InputSettings == nil {
		method.InputSettings = entity.DefaultInputSettings()
	}
	return &RedirectFlowService{
		paymentRepo: paymentRepo,
		client:      client,
		locker:      locker,
		signer:      signer,
		reporter:    SentryReporter{},
		method:      method,
		cfg:         cfg,
		logger:      factory.NewModuleLogger("redirect-flow-service"),
		now:         func() time.Time { return time.Now().UTC() },
		newToken:    uuid.NewString,
	}
}

// Validate checks a payment before the flow starts. It never changes the
// payment and never calls the provider. Non-strict validation always passes.
func (s *RedirectFlowService) Validate(payment *entity.Payment, strict bool) error {
	if !strict {
		return nil
	}

	if !billing.IsSupportedCurrency(payment.CurrencyCode) {
		return &ValidationError{Message: fmt.Sprintf(msgUnsupportedCurrency, payment.CurrencyCode)}
	}

	if len(payment.BillableLineItems()) == 0 {
		return &ValidationError{Message: msgEmptyLineItems}
	}

	for _, item := range payment.LineItems {
		if item == nil {
			continue
		}
		if item.Recurrence != nil && item.Recurrence.IntervalUnit != "" && !entity.IsSupportedIntervalUnit(item.Recurrence.IntervalUnit) {
			return &ValidationError{Message: fmt.Sprintf(msgUnsupportedInterval, item.Recurrence.IntervalUnit)}
		}
	}

	if !s.method.AllowOneOffPayments {
		for _, item := range payment.LineItems {
			if item != nil && !item.IsRecurring() {
				return &ValidationError{Message: msgOneOffNotAllowed}
			}
		}
	}

	return nil
}

func (s *RedirectFlowService) CreatePayment(ctx context.Context, req createPaymentRequest) (*ExecuteResult, error) {
	payment := entity.NewPayment(strings.ToUpper(strings.TrimSpace(req.GetCurrencyCode())), strings.TrimSpace(req.GetDescription()), s.now())
	payment.LineItems = req.GetLineItems()
	payment.Context = req.GetContext()
	payment.MethodData.CustomerData = PrefillCustomerData(req.GetCustomerData(), req.GetContext(), s.method.InputSettings)

	if err := s.Validate(payment, true); err != nil {
		return nil, err
	}

	return s.Execute(ctx, payment)
}

// Execute persists the payment and creates its redirect flow. Provider errors
// fail the payment and are not returned; the result then carries FAILED.
func (s *RedirectFlowService) Execute(ctx context.Context, payment *entity.Payment) (*ExecuteResult, error) {
	if payment.Status() != entity.PaymentStatusCreated {
		return nil, fmt.Errorf("%w: execute requires a new payment, got %s", ErrInvalidStatus, payment.Status())
	}

	if err := s.paymentRepo.Save(ctx, payment); err != nil {
		return nil, err
	}

	sessionToken := s.newToken()
	req := gocardless.CreateRedirectFlowRequest{
		Description:        payment.Description,
		SessionToken:       sessionToken,
		SuccessRedirectURL: s.successRedirectURL(payment.ID),
	}
	if customer := payment.MethodData.CustomerData; customer != (entity.CustomerData{}) {
		req.PrefilledCustomer = &customer
	}
	if s.method.CreditorID != "" {
		req.Links = &gocardless.Links{Creditor: s.method.CreditorID}
	}

	flow, err := s.client.CreateRedirectFlow(ctx, req)
	if err != nil {
		payment.SetStatus(entity.PaymentStatusFailed, s.now())
		if saveErr := s.paymentRepo.Save(ctx, payment); saveErr != nil {
			return nil, saveErr
		}
		s.logFailure(payment, err)
		return &ExecuteResult{Payment: payment, Status: payment.Status()}, nil
	}

	payment.GoCardless = &entity.FlowState{
		RedirectFlowID: flow.ID,
		SessionToken:   sessionToken,
	}
	payment.SetStatus(entity.PaymentStatusRedirectFlowCreated, s.now())
	if err := s.paymentRepo.Save(ctx, payment); err != nil {
		return nil, err
	}

	factory.LoggerWithPayment(s.logger, payment).Info("redirect flow created")

	return &ExecuteResult{
		Payment:     payment,
		Status:      payment.Status(),
		RedirectURL: flow.RedirectURL,
	}, nil
}

// RedirectReturn resumes the flow of a payment whose payer came back from the
// provider. State is always reloaded from the repository. A payment without a
// redirect flow is returned unchanged.
func (s *RedirectFlowService) RedirectReturn(ctx context.Context, paymentID int64) (*entity.Payment, error) {
	release, err := s.locker.Acquire(ctx, paymentID)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return nil, ErrPaymentLocked
		}
		return nil, err
	}
	defer release()

	payment, err := s.paymentRepo.Load(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}

	if payment.Status().IsTerminal() {
		factory.LoggerWithPayment(s.logger, payment).Info("redirect return ignored for finished payment")
		return payment, nil
	}

	if err := s.resume(ctx, payment); err != nil {
		return payment, err
	}
	return payment, nil
}

func (s *RedirectFlowService) resume(ctx context.Context, payment *entity.Payment) (err error) {
	from := payment.Status()
	var failure error

	defer func() {
		if payment.Status().IsTerminal() {
			if saveErr := s.paymentRepo.Save(ctx, payment); saveErr != nil && err == nil {
				err = saveErr
			}
		}
		s.finish(payment, from, failure, err)
	}()

	if payment.Status() == entity.PaymentStatusRedirectFlowCreated {
		payment.SetStatus(entity.PaymentStatusRedirectFlowReturned, s.now())
		if err := s.paymentRepo.Save(ctx, payment); err != nil {
			return err
		}
	}

	if payment.Status() == entity.PaymentStatusRedirectFlowReturned {
		if failure = s.CompleteRedirectFlow(ctx, payment); failure != nil {
			payment.SetStatus(entity.PaymentStatusFailed, s.now())
			return nil
		}
		if err := s.paymentRepo.Save(ctx, payment); err != nil {
			return err
		}
	}

	if payment.Status() == entity.PaymentStatusMandateCreated {
		if failure = s.ProcessLineItems(ctx, payment, s.now()); failure != nil {
			payment.SetStatus(entity.PaymentStatusFailed, s.now())
			return nil
		}
		payment.SetStatus(entity.PaymentStatusSuccess, s.now())
	}

	return nil
}

// CompleteRedirectFlow exchanges the redirect flow for a mandate and moves the
// payment to MANDATE_CREATED. The caller persists the payment.
func (s *RedirectFlowService) CompleteRedirectFlow(ctx context.Context, payment *entity.Payment) error {
	if !payment.GoCardless.HasRedirectFlow() {
		return ErrMissingFlowState
	}

	flow, err := s.client.CompleteRedirectFlow(ctx, payment.GoCardless.RedirectFlowID, payment.GoCardless.SessionToken)
	if err != nil {
		return err
	}

	payment.GoCardless.MandateID = flow.Links.Mandate
	payment.GoCardless.CustomerID = flow.Links.Customer
	payment.SetStatus(entity.PaymentStatusMandateCreated, s.now())
	return nil
}

// ProcessLineItems creates one provider payment or subscription per billable
// line item. It stops at the first error; items already created stay created.
func (s *RedirectFlowService) ProcessLineItems(ctx context.Context, payment *entity.Payment, reference time.Time) error {
	if !payment.GoCardless.HasMandate() {
		return ErrMissingMandate
	}

	factor, ok := billing.MinorUnitFactor(payment.CurrencyCode)
	if !ok {
		return &ValidationError{Message: fmt.Sprintf(msgUnsupportedCurrency, payment.CurrencyCode)}
	}

	mandateID := payment.GoCardless.MandateID
	logger := factory.LoggerWithPayment(s.logger, payment)
	for _, item := range payment.BillableLineItems() {
		calc := billing.Compute(item, factor, reference)

		if item.IsRecurring() {
			sub, err := s.client.CreateSubscription(ctx, billing.BuildSubscription(payment, item, calc, mandateID))
			if err != nil {
				return err
			}
			logger.WithFields(logrus.Fields{
				"line_item":       item.Name,
				"subscription_id": sub.ID,
				"amount":          calc.AmountMinorUnits,
			}).Info("subscription created")
			continue
		}

		created, err := s.client.CreatePayment(ctx, billing.BuildPayment(payment, item, calc, mandateID))
		if err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{
			"line_item":             item.Name,
			"gocardless_payment_id": created.ID,
			"amount":                calc.AmountMinorUnits,
		}).Info("payment created")
	}

	return nil
}

func (s *RedirectFlowService) GetPayment(ctx context.Context, id int64) (*entity.Payment, error) {
	payment, err := s.paymentRepo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

// DeletePayment removes a payment that is not in the middle of its flow.
func (s *RedirectFlowService) DeletePayment(ctx context.Context, id int64) error {
	release, err := s.locker.Acquire(ctx, id)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return ErrPaymentLocked
		}
		return err
	}
	defer release()

	payment, err := s.GetPayment(ctx, id)
	if err != nil {
		return err
	}
	if status := payment.Status(); status != entity.PaymentStatusCreated && !status.IsTerminal() {
		return fmt.Errorf("%w: payment flow in progress", ErrInvalidStatus)
	}

	if err := s.paymentRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return ErrPaymentNotFound
		}
		return err
	}
	return nil
}

// RunAbandonedFlowBatch fails payments whose payer never came back from the
// provider within the configured timeout.
func (s *RedirectFlowService) RunAbandonedFlowBatch(ctx context.Context) error {
	cutoff := s.now().Add(-s.cfg.AbandonedFlowTimeout)
	items, err := s.paymentRepo.ListStale(ctx, entity.PaymentStatusRedirectFlowCreated, cutoff)
	if err != nil {
		return err
	}

	failed := 0
	for _, item := range items {
		ok, err := s.failAbandoned(ctx, item.ID)
		if err != nil {
			s.logger.WithError(err).WithField("payment_id", item.ID).Warn("abandoned flow cleanup failed")
			continue
		}
		if ok {
			failed++
		}
	}

	s.logger.WithFields(logrus.Fields{
		"candidates": len(items),
		"failed":     failed,
	}).Info("abandoned flow cleanup finished")
	return nil
}

func (s *RedirectFlowService) failAbandoned(ctx context.Context, paymentID int64) (bool, error) {
	release, err := s.locker.Acquire(ctx, paymentID)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return false, nil
		}
		return false, err
	}
	defer release()

	payment, err := s.paymentRepo.Load(ctx, paymentID)
	if err != nil || payment == nil {
		return false, err
	}
	if payment.Status() != entity.PaymentStatusRedirectFlowCreated {
		return false, nil
	}

	payment.SetStatus(entity.PaymentStatusFailed, s.now())
	if err := s.paymentRepo.Save(ctx, payment); err != nil {
		return false, err
	}
	factory.LoggerWithPayment(s.logger, payment).Info("abandoned redirect flow failed")
	return true, nil
}

func (s *RedirectFlowService) successRedirectURL(paymentID int64) string {
	return fmt.Sprintf("%s/gocardless/return/%d/%s", strings.TrimRight(s.cfg.PublicBaseURL, "/"), paymentID, s.signer.Sign(paymentID))
}

// finish runs once per redirect return. failure is a provider error that
// failed the payment; err is anything that stopped the return from completing.
func (s *RedirectFlowService) finish(payment *entity.Payment, from entity.PaymentStatus, failure, err error) {
	if failure != nil {
		s.logFailure(payment, failure)
		return
	}
	logger := factory.LoggerWithPayment(s.logger, payment).WithField("from_status", string(from))
	if err != nil {
		logger.WithError(err).Error("redirect return interrupted")
		return
	}
	logger.Info("redirect return finished")
}

func (s *RedirectFlowService) logFailure(payment *entity.Payment, failure error) {
	logger := factory.LoggerWithPayment(s.logger, payment).WithError(failure)

	var typed *gocardless.Error
	var httpErr *gocardless.HTTPError
	switch {
	case errors.As(failure, &typed):
		logger = logger.WithFields(logrus.Fields{
			"error_type": string(typed.Kind),
			"error_code": typed.Code,
			"error_body": typed.Body,
		})
	case errors.As(failure, &httpErr):
		logger = logger.WithFields(logrus.Fields{
			"status_code": httpErr.StatusCode,
			"error_body":  string(httpErr.Body),
		})
	}

	logger.Error("payment failed")
	s.reporter.Report(payment, failure)
}
