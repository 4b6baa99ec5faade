package service

import (
	"errors"
	"strconv"

	"github.com/getsentry/sentry-go"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/entity"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/gocardless"
)

type failureReporter interface {
	Report(payment *entity.Payment, err error)
}

// SentryReporter sends terminal payment failures to Sentry. It is a no-op
// until sentry.Init has been called with a DSN.
type SentryReporter struct{}

func (SentryReporter) Report(payment *entity.Payment, err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("payment_id", strconv.FormatInt(payment.ID, 10))
		scope.SetTag("payment_status", string(payment.Status()))

		var typed *gocardless.Error
		if errors.As(err, &typed) {
			scope.SetTag("gocardless_error_type", string(typed.Kind))
			scope.SetExtra("gocardless_error", typed.Body)
		}

		sentry.CaptureException(err)
	})
}
