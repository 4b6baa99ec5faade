package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/vibast-solutions/ms-go-gocardless-payments/app/entity"
)

const (
	DefaultPaymentsTable       = "gocardless_payments"
	PaymentsStatusUpdatedIndex = "status-updated_at-index"

	// The item with id 0 holds the id sequence. It has no status, so it never
	// shows up in the status index.
	sequenceItemID = 0

	// Fixed-width so that updated_at sorts lexicographically in the index.
	dynamoTimeLayout = "2006-01-02T15:04:05.000000000Z"
)

type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

type paymentItem struct {
	ID           int64               `dynamodbav:"id"`
	CurrencyCode string              `dynamodbav:"currency_code"`
	Description  string              `dynamodbav:"description"`
	Status       string              `dynamodbav:"status"`
	StatusItems  []entity.StatusItem `dynamodbav:"status_items"`
	LineItems    string              `dynamodbav:"line_items"`
	CustomerData entity.CustomerData `dynamodbav:"customer_data"`
	Context      map[string]string   `dynamodbav:"context,omitempty"`
	GoCardless   *entity.FlowState   `dynamodbav:"gocardless,omitempty"`
	CreatedAt    string              `dynamodbav:"created_at"`
	UpdatedAt    string              `dynamodbav:"updated_at"`
}

// PaymentDynamoRepository persists payments in DynamoDB.
//
// Table requirements:
//   - PK: id (number)
//   - GSI: status-updated_at-index (PK: status, SK: updated_at)
type PaymentDynamoRepository struct {
	ddb       DynamoDBAPI
	tableName string
}

func NewPaymentDynamoRepository(ddb DynamoDBAPI, tableName string) *PaymentDynamoRepository {
	if tableName == "" {
		tableName = DefaultPaymentsTable
	}
	return &PaymentDynamoRepository{ddb: ddb, tableName: tableName}
}

func (r *PaymentDynamoRepository) Save(ctx context.Context, payment *entity.Payment) error {
	isNew := payment.ID == 0
	if isNew {
		id, err := r.nextID(ctx)
		if err != nil {
			return err
		}
		payment.ID = id
	}

	it, err := toPaymentItem(payment)
	if err != nil {
		return err
	}
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return err
	}

	condition := "attribute_exists(#id)"
	if isNew {
		condition = "attribute_not_exists(#id)"
	}

	_, err = r.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String(condition),
		ExpressionAttributeNames: map[string]string{
			"#id": "id",
		},
	})
	if err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			if isNew {
				return ErrPaymentAlreadyExists
			}
			return ErrPaymentNotFound
		}
		return err
	}
	return nil
}

func (r *PaymentDynamoRepository) Load(ctx context.Context, id int64) (*entity.Payment, error) {
	out, err := r.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            paymentKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var it paymentItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, err
	}
	return fromPaymentItem(it)
}

func (r *PaymentDynamoRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.ddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 paymentKey(id),
		ConditionExpression: aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames: map[string]string{
			"#id": "id",
		},
	})
	if err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			return ErrPaymentNotFound
		}
		return err
	}
	return nil
}

func (r *PaymentDynamoRepository) ListStale(ctx context.Context, status entity.PaymentStatus, cutoff time.Time) ([]*entity.Payment, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(PaymentsStatusUpdatedIndex),
		KeyConditionExpression: aws.String("#status = :status AND updated_at < :cutoff"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
			":cutoff": &types.AttributeValueMemberS{Value: formatDynamoTime(cutoff)},
		},
	}

	items := make([]*entity.Payment, 0)
	for {
		out, err := r.ddb.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		for _, raw := range out.Items {
			var it paymentItem
			if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
				return nil, err
			}
			payment, err := fromPaymentItem(it)
			if err != nil {
				return nil, err
			}
			items = append(items, payment)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	return items, nil
}

func (r *PaymentDynamoRepository) nextID(ctx context.Context) (int64, error) {
	out, err := r.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              paymentKey(sequenceItemID),
		UpdateExpression: aws.String("ADD #seq :one"),
		ExpressionAttributeNames: map[string]string{
			"#seq": "seq",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("allocate payment id: %w", err)
	}

	var counter struct {
		Seq int64 `dynamodbav:"seq"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &counter); err != nil {
		return 0, fmt.Errorf("allocate payment id: %w", err)
	}
	if counter.Seq <= 0 {
		return 0, errors.New("allocate payment id: empty sequence")
	}
	return counter.Seq, nil
}

func paymentKey(id int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberN{Value: strconv.FormatInt(id, 10)},
	}
}

// Line items go in as JSON so decimal amounts keep their exact text form.
func toPaymentItem(p *entity.Payment) (paymentItem, error) {
	lineItems := p.LineItems
	if lineItems == nil {
		lineItems = []*entity.LineItem{}
	}
	encoded, err := json.Marshal(lineItems)
	if err != nil {
		return paymentItem{}, fmt.Errorf("encode line items: %w", err)
	}

	return paymentItem{
		ID:           p.ID,
		CurrencyCode: p.CurrencyCode,
		Description:  p.Description,
		Status:       string(p.Status()),
		StatusItems:  p.StatusItems,
		LineItems:    string(encoded),
		CustomerData: p.MethodData.CustomerData,
		Context:      p.Context,
		GoCardless:   p.GoCardless,
		CreatedAt:    formatDynamoTime(p.CreatedAt),
		UpdatedAt:    formatDynamoTime(p.UpdatedAt),
	}, nil
}

func fromPaymentItem(it paymentItem) (*entity.Payment, error) {
	payment := &entity.Payment{
		ID:           it.ID,
		CurrencyCode: it.CurrencyCode,
		Description:  it.Description,
		StatusItems:  it.StatusItems,
		MethodData:   entity.MethodData{CustomerData: it.CustomerData},
		Context:      it.Context,
		GoCardless:   it.GoCardless,
	}
	var err error
	if payment.CreatedAt, err = time.Parse(dynamoTimeLayout, it.CreatedAt); err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	if payment.UpdatedAt, err = time.Parse(dynamoTimeLayout, it.UpdatedAt); err != nil {
		return nil, fmt.Errorf("decode updated_at: %w", err)
	}

	if it.LineItems != "" {
		if err := json.Unmarshal([]byte(it.LineItems), &payment.LineItems); err != nil {
			return nil, fmt.Errorf("decode line items: %w", err)
		}
	}
	if len(payment.StatusItems) == 0 && it.Status != "" {
		payment.StatusItems = []entity.StatusItem{{Status: entity.PaymentStatus(it.Status), CreatedAt: payment.UpdatedAt}}
	}
	return payment, nil
}

func formatDynamoTime(t time.Time) string {
	return t.UTC().Format(dynamoTimeLayout)
}
