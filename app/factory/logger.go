package factory

import (
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/entity"
)

func NewModuleLogger(module string) logrus.FieldLogger {
	return logrus.WithField("module", module)
}

// LoggerWithContext tags the logger with the request id, falling back to the
// one generated by the request-id middleware.
func LoggerWithContext(logger logrus.FieldLogger, ctx echo.Context) logrus.FieldLogger {
	requestID := ctx.Request().Header.Get(echo.HeaderXRequestID)
	if requestID == "" {
		requestID = ctx.Response().Header().Get(echo.HeaderXRequestID)
	}
	return logger.WithField("request_id", requestID)
}

func LoggerWithPayment(logger logrus.FieldLogger, payment *entity.Payment) logrus.FieldLogger {
	fields := logrus.Fields{
		"payment_id": payment.ID,
		"status":     string(payment.Status()),
	}
	if payment.GoCardless != nil && payment.GoCardless.RedirectFlowID != "" {
		fields["redirect_flow_id"] = payment.GoCardless.RedirectFlowID
	}
	return logger.WithFields(fields)
}
