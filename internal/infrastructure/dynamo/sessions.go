package dynamo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-auth-sessions/internal/domain"
)

// batchWriteLimit is DynamoDB's per-request cap for BatchWriteItem.
const batchWriteLimit = 25

// SessionRepo provides typed DynamoDB operations for the sessions table.
type SessionRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewSessionRepo(client *dynamodb.Client, tableName string) *SessionRepo {
	return &SessionRepo{client: client, tableName: tableName}
}

func (r *SessionRepo) Create(ctx context.Context, s *domain.Session) error {
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(" + fieldSessionID + ")"),
	})
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

func (r *SessionRepo) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldSessionID, sessionID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	var s domain.Session
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListByAccount returns every stored session for the account, expired ones
// included until TTL reclaims them.
func (r *SessionRepo) ListByAccount(ctx context.Context, accountID string) ([]domain.Session, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexSessionAccount),
		KeyConditionExpression: aws.String("account_id = :aid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":aid": &types.AttributeValueMemberS{Value: accountID},
		},
	})
	var sessions []domain.Session
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var batch []domain.Session
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, err
		}
		sessions = append(sessions, batch...)
	}
	return sessions, nil
}

// Delete removes a session. Only one of several concurrent callers gets a
// nil error; the rest see domain.ErrNotFound.
func (r *SessionRepo) Delete(ctx context.Context, sessionID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(fieldSessionID, sessionID),
		ConditionExpression: aws.String("attribute_exists(" + fieldSessionID + ")"),
	})
	if err != nil {
		return notFoundOnConditionFailure(err, "session")
	}
	return nil
}

// DeleteAllByAccount removes every session of the account and returns how
// many were removed.
func (r *SessionRepo) DeleteAllByAccount(ctx context.Context, accountID string) (int, error) {
	sessions, err := r.ListByAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	for start := 0; start < len(sessions); start += batchWriteLimit {
		end := min(start+batchWriteLimit, len(sessions))
		reqs := make([]types.WriteRequest, 0, end-start)
		for _, s := range sessions[start:end] {
			reqs = append(reqs, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: strKey(fieldSessionID, s.SessionID)},
			})
		}
		if err := r.batchDelete(ctx, reqs); err != nil {
			return 0, err
		}
	}
	return len(sessions), nil
}

const maxBatchRetries = 5

func (r *SessionRepo) batchDelete(ctx context.Context, reqs []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{r.tableName: reqs}
	for attempt := 0; attempt < maxBatchRetries && len(pending[r.tableName]) > 0; attempt++ {
		out, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return fmt.Errorf("batch delete sessions: %w", err)
		}
		pending = out.UnprocessedItems
	}
	if left := len(pending[r.tableName]); left > 0 {
		slog.Warn("sessions left after batch delete", "table", r.tableName, "count", left)
		return fmt.Errorf("batch delete sessions: %d unprocessed", left)
	}
	return nil
}
