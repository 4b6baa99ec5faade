package types

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/entity"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationMessage turns the first failed rule into a client-facing message.
func validationMessage(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}

	fe := fieldErrs[0]
	field := strings.TrimPrefix(fe.Namespace(), "CreatePaymentRequest.")
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "len":
		return fmt.Errorf("%s must be %s characters long", field, fe.Param())
	case "email":
		return fmt.Errorf("%s must be a valid email", field)
	case "min", "gte":
		return fmt.Errorf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Errorf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Errorf("%s is invalid", field)
	}
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type RecurrenceRequest struct {
	IntervalUnit  string `json:"interval_unit"`
	IntervalValue *int   `json:"interval_value,omitempty" validate:"omitempty,min=1"`
	DayOfMonth    *int   `json:"day_of_month,omitempty" validate:"omitempty,min=-1,max=31"`
	Month         *int   `json:"month,omitempty" validate:"omitempty,min=1,max=12"`
	Count         *int   `json:"count,omitempty" validate:"omitempty,min=1"`
}

type LineItemRequest struct {
	Name        string             `json:"name" validate:"required,max=255"`
	Description string             `json:"description" validate:"max=255"`
	UnitAmount  decimal.Decimal    `json:"unit_amount"`
	Quantity    int                `json:"quantity" validate:"min=0"`
	Recurrence  *RecurrenceRequest `json:"recurrence,omitempty"`
}

type CreatePaymentRequest struct {
	CurrencyCode string              `json:"currency_code" validate:"required,len=3"`
	Description  string              `json:"description" validate:"max=255"`
	LineItems    []*LineItemRequest  `json:"line_items" validate:"dive,required"`
	CustomerData entity.CustomerData `json:"customer_data"`
	Context      map[string]string   `json:"context,omitempty"`
}

func NewCreatePaymentRequestFromContext(ctx echo.Context) (*CreatePaymentRequest, error) {
	var body CreatePaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.CurrencyCode = strings.ToUpper(strings.TrimSpace(body.CurrencyCode))
	body.Description = strings.TrimSpace(body.Description)
	for _, item := range body.LineItems {
		if item == nil {
			continue
		}
		item.Name = strings.TrimSpace(item.Name)
		if item.Recurrence != nil {
			item.Recurrence.IntervalUnit = strings.ToLower(strings.TrimSpace(item.Recurrence.IntervalUnit))
		}
	}
	body.CustomerData.Email = strings.TrimSpace(body.CustomerData.Email)
	return &body, nil
}

func (r *CreatePaymentRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return validationMessage(err)
	}
	for i, item := range r.LineItems {
		if item.UnitAmount.IsNegative() {
			return fmt.Errorf("line_items[%d].unit_amount must not be negative", i)
		}
	}
	if err := validate.Var(r.CustomerData.Email, "omitempty,email"); err != nil {
		return errors.New("customer_data.email must be a valid email")
	}
	return nil
}

func (r *CreatePaymentRequest) GetCurrencyCode() string {
	if r == nil {
		return ""
	}
	return r.CurrencyCode
}

func (r *CreatePaymentRequest) GetDescription() string {
	if r == nil {
		return ""
	}
	return r.Description
}

func (r *CreatePaymentRequest) GetLineItems() []*entity.LineItem {
	if r == nil {
		return nil
	}
	items := make([]*entity.LineItem, 0, len(r.LineItems))
	for _, item := range r.LineItems {
		if item == nil {
			continue
		}
		lineItem := &entity.LineItem{
			Name:        item.Name,
			Description: item.Description,
			UnitAmount:  item.UnitAmount,
			Quantity:    item.Quantity,
		}
		if rec := item.Recurrence; rec != nil {
			lineItem.Recurrence = &entity.Recurrence{
				IntervalUnit:  rec.IntervalUnit,
				IntervalValue: rec.IntervalValue,
				DayOfMonth:    rec.DayOfMonth,
				Month:         rec.Month,
				Count:         rec.Count,
			}
		}
		items = append(items, lineItem)
	}
	return items
}

func (r *CreatePaymentRequest) GetCustomerData() entity.CustomerData {
	if r == nil {
		return entity.CustomerData{}
	}
	return r.CustomerData
}

func (r *CreatePaymentRequest) GetContext() map[string]string {
	if r == nil {
		return nil
	}
	return r.Context
}

type GetPaymentRequest struct {
	Id int64
}

func NewGetPaymentRequestFromContext(ctx echo.Context) (*GetPaymentRequest, error) {
	id, err := parsePaymentID(ctx)
	if err != nil {
		return nil, err
	}
	return &GetPaymentRequest{Id: id}, nil
}

func (r *GetPaymentRequest) Validate() error {
	if r.GetId() <= 0 {
		return errors.New("invalid payment id")
	}
	return nil
}

func (r *GetPaymentRequest) GetId() int64 {
	if r == nil {
		return 0
	}
	return r.Id
}

type DeletePaymentRequest struct {
	Id int64
}

func NewDeletePaymentRequestFromContext(ctx echo.Context) (*DeletePaymentRequest, error) {
	id, err := parsePaymentID(ctx)
	if err != nil {
		return nil, err
	}
	return &DeletePaymentRequest{Id: id}, nil
}

func (r *DeletePaymentRequest) Validate() error {
	if r.GetId() <= 0 {
		return errors.New("invalid payment id")
	}
	return nil
}

func (r *DeletePaymentRequest) GetId() int64 {
	if r == nil {
		return 0
	}
	return r.Id
}

// RedirectReturnRequest is built from the signed return URL the payer is
// sent back to. The provider appends redirect_flow_id as a query parameter.
type RedirectReturnRequest struct {
	PaymentId      int64
	Signature      string
	RedirectFlowId string
}

func NewRedirectReturnRequestFromContext(ctx echo.Context) (*RedirectReturnRequest, error) {
	id, err := parsePaymentID(ctx)
	if err != nil {
		return nil, err
	}
	return &RedirectReturnRequest{
		PaymentId:      id,
		Signature:      strings.TrimSpace(ctx.Param("signature")),
		RedirectFlowId: strings.TrimSpace(ctx.QueryParam("redirect_flow_id")),
	}, nil
}

func (r *RedirectReturnRequest) Validate() error {
	if r.GetPaymentId() <= 0 {
		return errors.New("invalid payment id")
	}
	if r.GetSignature() == "" {
		return errors.New("signature is required")
	}
	return nil
}

func (r *RedirectReturnRequest) GetPaymentId() int64 {
	if r == nil {
		return 0
	}
	return r.PaymentId
}

func (r *RedirectReturnRequest) GetSignature() string {
	if r == nil {
		return ""
	}
	return r.Signature
}

func (r *RedirectReturnRequest) GetRedirectFlowId() string {
	if r == nil {
		return ""
	}
	return r.RedirectFlowId
}

func parsePaymentID(ctx echo.Context) (int64, error) {
	return strconv.ParseInt(ctx.Param("id"), 10, 64)
}
