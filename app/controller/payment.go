package controller

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/dto"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/entity"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/factory"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/mapper"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/service"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/types"
	"github.com/vibast-solutions/ms-go-gocardless-payments/config"
)

type returnVerifier interface {
	Verify(paymentID int64, signature string) bool
}

type PaymentController struct {
	paymentService *service.RedirectFlowService
	verifier       returnVerifier
	cfg            config.PaymentsConfig
	logger         logrus.FieldLogger
}

func NewPaymentController(
	paymentService *service.RedirectFlowService,
	verifier returnVerifier,
	cfg config.PaymentsConfig,
) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		verifier:       verifier,
		cfg:            cfg,
		logger:         factory.NewModuleLogger("payments-controller"),
	}
}

func (c *PaymentController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *PaymentController) CreatePayment(ctx echo.Context) error {
	req, err := types.NewCreatePaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.paymentService.CreatePayment(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentValidation):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Create payment failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusCreated, &dto.CreatePaymentResponse{
		Payment:     mapper.PaymentToResponse(result.Payment),
		RedirectURL: result.RedirectURL,
	})
}

func (c *PaymentController) GetPayment(ctx echo.Context) error {
	req, err := types.NewGetPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.GetPayment(ctx.Request().Context(), req.GetId())
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "payment not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get payment failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &dto.PaymentEnvelopeResponse{
		Payment: mapper.PaymentToResponse(item),
	})
}

func (c *PaymentController) DeletePayment(ctx echo.Context) error {
	req, err := types.NewDeletePaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	if err := c.paymentService.DeletePayment(ctx.Request().Context(), req.GetId()); err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			return c.writeError(ctx, http.StatusNotFound, "payment not found")
		case errors.Is(err, service.ErrInvalidStatus), errors.Is(err, service.ErrPaymentLocked):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Delete payment failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "Payment deleted successfully"})
}

// RedirectReturn handles the payer's browser coming back from the provider.
func (c *PaymentController) RedirectReturn(ctx echo.Context) error {
	req, err := types.NewRedirectReturnRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}
	if !c.verifier.Verify(req.GetPaymentId(), req.GetSignature()) {
		return c.writeError(ctx, http.StatusForbidden, "invalid signature")
	}

	logger := factory.LoggerWithContext(c.logger, ctx).WithFields(logrus.Fields{
		"payment_id":       req.GetPaymentId(),
		"redirect_flow_id": req.GetRedirectFlowId(),
	})

	item, err := c.paymentService.RedirectReturn(ctx.Request().Context(), req.GetPaymentId())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			return c.writeError(ctx, http.StatusNotFound, "payment not found")
		case errors.Is(err, service.ErrPaymentLocked):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		default:
			logger.WithError(err).Error("Redirect return failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	if target := c.finishURL(item); target != "" {
		logger.WithField("status", string(item.Status())).Info("Redirecting payer to finish page")
		return ctx.Redirect(http.StatusFound, target)
	}

	return ctx.JSON(http.StatusOK, &dto.PaymentEnvelopeResponse{
		Payment: mapper.PaymentToResponse(item),
	})
}

func (c *PaymentController) finishURL(item *entity.Payment) string {
	var base string
	switch item.Status() {
	case entity.PaymentStatusSuccess:
		base = c.cfg.FinishSuccessURL
	case entity.PaymentStatusFailed:
		base = c.cfg.FinishFailureURL
	}
	if base == "" {
		return ""
	}

	target, err := url.Parse(base)
	if err != nil {
		c.logger.WithError(err).WithField("url", base).Warn("Invalid finish url")
		return ""
	}
	query := target.Query()
	query.Set("payment_id", strconv.FormatInt(item.ID, 10))
	target.RawQuery = query.Encode()
	return target.String()
}

func (c *PaymentController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
