package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vibast-solutions/ms-go-gocardless-payments/app/entity"
)

const paymentColumns = `
	id, currency_code, description, status,
	status_items, line_items, customer_data, context,
	redirect_flow_id, session_token, mandate_id, customer_id,
	created_at, updated_at
`

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Save inserts the payment when it has no id yet and updates it otherwise.
func (r *PaymentRepository) Save(ctx context.Context, payment *entity.Payment) error {
	cols, err := encodePaymentColumns(payment)
	if err != nil {
		return err
	}
	if payment.ID == 0 {
		return r.create(ctx, payment, cols)
	}
	return r.update(ctx, payment, cols)
}

func (r *PaymentRepository) create(ctx context.Context, payment *entity.Payment, cols encodedPayment) error {
	query := `
		INSERT INTO gocardless_payments (
			currency_code, description, status,
			status_items, line_items, customer_data, context,
			redirect_flow_id, session_token, mandate_id, customer_id,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	flow := flowColumns(payment.GoCardless)
	result, err := r.db.ExecContext(ctx, query,
		payment.CurrencyCode,
		payment.Description,
		string(payment.Status()),
		cols.statusItems,
		cols.lineItems,
		cols.customerData,
		cols.context,
		flow[0], flow[1], flow[2], flow[3],
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrPaymentAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	payment.ID = id
	return nil
}

func (r *PaymentRepository) update(ctx context.Context, payment *entity.Payment, cols encodedPayment) error {
	query := `
		UPDATE gocardless_payments
		SET currency_code = ?, description = ?, status = ?,
		    status_items = ?, line_items = ?, customer_data = ?, context = ?,
		    redirect_flow_id = ?, session_token = ?, mandate_id = ?, customer_id = ?,
		    updated_at = ?
		WHERE id = ?
	`

	flow := flowColumns(payment.GoCardless)
	result, err := r.db.ExecContext(ctx, query,
		payment.CurrencyCode,
		payment.Description,
		string(payment.Status()),
		cols.statusItems,
		cols.lineItems,
		cols.customerData,
		cols.context,
		flow[0], flow[1], flow[2], flow[3],
		payment.UpdatedAt,
		payment.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// MySQL reports 0 for an update that changed nothing.
		exists, err := r.exists(ctx, payment.ID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrPaymentNotFound
		}
	}

	return nil
}

func (r *PaymentRepository) exists(ctx context.Context, id int64) (bool, error) {
	var found int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM gocardless_payments WHERE id = ?`, id).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *PaymentRepository) Load(ctx context.Context, id int64) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM gocardless_payments WHERE id = ?`

	item := &entity.Payment{}
	if err := scanPayment(r.db.QueryRowContext(ctx, query, id), item); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return item, nil
}

func (r *PaymentRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM gocardless_payments WHERE id = ?`, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *PaymentRepository) ListStale(ctx context.Context, status entity.PaymentStatus, cutoff time.Time) ([]*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM gocardless_payments
		WHERE status = ?
		  AND updated_at < ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, string(status), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.Payment, 0)
	for rows.Next() {
		item := &entity.Payment{}
		if err := scanPayment(rows, item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type encodedPayment struct {
	statusItems  []byte
	lineItems    []byte
	customerData []byte
	context      []byte
}

func encodePaymentColumns(payment *entity.Payment) (encodedPayment, error) {
	var cols encodedPayment
	var err error

	if cols.statusItems, err = json.Marshal(payment.StatusItems); err != nil {
		return cols, fmt.Errorf("encode status items: %w", err)
	}
	lineItems := payment.LineItems
	if lineItems == nil {
		lineItems = []*entity.LineItem{}
	}
	if cols.lineItems, err = json.Marshal(lineItems); err != nil {
		return cols, fmt.Errorf("encode line items: %w", err)
	}
	if cols.customerData, err = json.Marshal(payment.MethodData.CustomerData); err != nil {
		return cols, fmt.Errorf("encode customer data: %w", err)
	}
	if payment.Context != nil {
		if cols.context, err = json.Marshal(payment.Context); err != nil {
			return cols, fmt.Errorf("encode context: %w", err)
		}
	}
	return cols, nil
}

func flowColumns(state *entity.FlowState) [4]interface{} {
	if state == nil {
		return [4]interface{}{nil, nil, nil, nil}
	}
	return [4]interface{}{
		nullableStringValue(state.RedirectFlowID),
		nullableStringValue(state.SessionToken),
		nullableStringValue(state.MandateID),
		nullableStringValue(state.CustomerID),
	}
}

func scanPayment(scanner rowScanner, item *entity.Payment) error {
	var status string
	var statusItems, lineItems, customerData, contextData []byte
	var redirectFlowID, sessionToken, mandateID, customerID sql.NullString

	err := scanner.Scan(
		&item.ID,
		&item.CurrencyCode,
		&item.Description,
		&status,
		&statusItems,
		&lineItems,
		&customerData,
		&contextData,
		&redirectFlowID,
		&sessionToken,
		&mandateID,
		&customerID,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if len(statusItems) > 0 {
		if err := json.Unmarshal(statusItems, &item.StatusItems); err != nil {
			return fmt.Errorf("decode status items: %w", err)
		}
	}
	if len(item.StatusItems) == 0 {
		item.StatusItems = []entity.StatusItem{{Status: entity.PaymentStatus(status), CreatedAt: item.UpdatedAt}}
	}
	if len(lineItems) > 0 {
		if err := json.Unmarshal(lineItems, &item.LineItems); err != nil {
			return fmt.Errorf("decode line items: %w", err)
		}
	}
	if len(customerData) > 0 {
		if err := json.Unmarshal(customerData, &item.MethodData.CustomerData); err != nil {
			return fmt.Errorf("decode customer data: %w", err)
		}
	}
	if len(contextData) > 0 {
		if err := json.Unmarshal(contextData, &item.Context); err != nil {
			return fmt.Errorf("decode context: %w", err)
		}
	}

	if redirectFlowID.Valid || sessionToken.Valid || mandateID.Valid || customerID.Valid {
		item.GoCardless = &entity.FlowState{
			RedirectFlowID: redirectFlowID.String,
			SessionToken:   sessionToken.String,
			MandateID:      mandateID.String,
			CustomerID:     customerID.String,
		}
	} else {
		item.GoCardless = nil
	}

	return nil
}
