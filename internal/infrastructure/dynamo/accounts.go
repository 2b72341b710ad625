package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-auth-sessions/internal/domain"
)

// emailGuardPrefix keys the marker item that makes email addresses unique.
// DynamoDB cannot enforce uniqueness on a GSI, so Create writes the account
// and an "email#<address>" item in one transaction.
const emailGuardPrefix = "email#"

// AccountRepo provides typed DynamoDB operations for the accounts table.
type AccountRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewAccountRepo(client *dynamodb.Client, tableName string) *AccountRepo {
	return &AccountRepo{client: client, tableName: tableName}
}

// Create inserts a new account. It fails with domain.ErrConflict when the
// email is already taken.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}
	notExists := aws.String("attribute_not_exists(" + fieldAccountID + ")")
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                strKey(fieldAccountID, emailGuardPrefix+a.Email),
				ConditionExpression: notExists,
			}},
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                item,
				ConditionExpression: notExists,
			}},
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return fmt.Errorf("email already registered: %w", domain.ErrConflict)
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (r *AccountRepo) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldAccountID, accountID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	var a domain.Account
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.queryGSI(ctx, indexEmail, fieldEmail, email)
}

func (r *AccountRepo) GetByVerificationToken(ctx context.Context, fingerprint string) (*domain.Account, error) {
	return r.queryGSI(ctx, indexVerificationToken, fieldVerificationToken, fingerprint)
}

func (r *AccountRepo) GetByResetToken(ctx context.Context, fingerprint string) (*domain.Account, error) {
	return r.queryGSI(ctx, indexResetToken, fieldResetToken, fingerprint)
}

func (r *AccountRepo) GetByTempAuthToken(ctx context.Context, fingerprint string) (*domain.Account, error) {
	return r.queryGSI(ctx, indexTempAuthToken, fieldTempAuthToken, fingerprint)
}

// RecordFailedLogin atomically increments the failed-attempt counter and
// returns the new value.
func (r *AccountRepo) RecordFailedLogin(ctx context.Context, accountID string) (int, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(fieldAccountID, accountID),
		UpdateExpression:    aws.String("ADD #n :one SET #u = :now"),
		ConditionExpression: aws.String("attribute_exists(" + fieldAccountID + ")"),
		ExpressionAttributeNames: map[string]string{
			"#n": fieldFailedLoginAttempts,
			"#u": fieldUpdatedAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":now": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, notFoundOnConditionFailure(err, "account")
	}
	var n int
	if err := attributevalue.Unmarshal(out.Attributes[fieldFailedLoginAttempts], &n); err != nil {
		return 0, fmt.Errorf("unmarshal failed attempts: %w", err)
	}
	return n, nil
}

// Lock opens a lockout window and resets the counter.
func (r *AccountRepo) Lock(ctx context.Context, accountID string, until time.Time) error {
	return r.update(ctx, accountID, map[string]interface{}{
		fieldLockedUntil:         until.UTC(),
		fieldFailedLoginAttempts: 0,
	})
}

// RecordSuccessfulLogin clears lockout state and stamps the login.
func (r *AccountRepo) RecordSuccessfulLogin(ctx context.Context, accountID, ip string, at time.Time) error {
	return r.update(ctx, accountID, map[string]interface{}{
		fieldFailedLoginAttempts: 0,
		fieldLockedUntil:         nil,
		fieldLastLoginAt:         at.UTC(),
		fieldLastLoginIP:         ip,
	})
}

func (r *AccountRepo) SetVerificationToken(ctx context.Context, accountID, fingerprint string, expires time.Time) error {
	return r.update(ctx, accountID, map[string]interface{}{
		fieldVerificationToken:        fingerprint,
		fieldVerificationTokenExpires: expires.UTC(),
	})
}

// MarkEmailVerified consumes the verification token. It only applies while
// the stored token still matches fingerprint; otherwise domain.ErrNotFound.
func (r *AccountRepo) MarkEmailVerified(ctx context.Context, accountID, fingerprint string) error {
	return r.updateIf(ctx, accountID, map[string]interface{}{
		fieldIsEmailVerified:          true,
		fieldVerificationToken:        nil,
		fieldVerificationTokenExpires: nil,
	}, fieldEquals(fieldVerificationToken, fingerprint), "verification token")
}

func (r *AccountRepo) SetResetToken(ctx context.Context, accountID, fingerprint string, expires time.Time) error {
	return r.update(ctx, accountID, map[string]interface{}{
		fieldResetToken:        fingerprint,
		fieldResetTokenExpires: expires.UTC(),
	})
}

// ResetPassword stores the new hash and consumes the reset token in one
// conditional write. A token already consumed yields domain.ErrNotFound.
func (r *AccountRepo) ResetPassword(ctx context.Context, accountID, fingerprint, passwordHash string) error {
	return r.updateIf(ctx, accountID, map[string]interface{}{
		fieldPasswordHash:      passwordHash,
		fieldResetToken:        nil,
		fieldResetTokenExpires: nil,
	}, fieldEquals(fieldResetToken, fingerprint), "reset token")
}

func (r *AccountRepo) SetPasswordHash(ctx context.Context, accountID, passwordHash string) error {
	return r.update(ctx, accountID, map[string]interface{}{
		fieldPasswordHash: passwordHash,
	})
}

func (r *AccountRepo) SetTwoFactorTempSecret(ctx context.Context, accountID, secret string) error {
	return r.update(ctx, accountID, map[string]interface{}{
		fieldTwoFactorTempSecret: secret,
	})
}

// EnableTwoFactor promotes the confirmed secret and stores backup code hashes.
func (r *AccountRepo) EnableTwoFactor(ctx context.Context, accountID, secret string, backupCodeHashes []string) error {
	return r.update(ctx, accountID, map[string]interface{}{
		fieldTwoFactorEnabled:    true,
		fieldTwoFactorSecret:     secret,
		fieldTwoFactorTempSecret: nil,
		fieldBackupCodeHashes:    listOrNil(backupCodeHashes),
	})
}

func (r *AccountRepo) DisableTwoFactor(ctx context.Context, accountID string) error {
	return r.update(ctx, accountID, map[string]interface{}{
		fieldTwoFactorEnabled:    false,
		fieldTwoFactorSecret:     nil,
		fieldTwoFactorTempSecret: nil,
		fieldBackupCodeHashes:    nil,
		fieldTempAuthToken:       nil,
		fieldTempAuthExpires:     nil,
	})
}

func (r *AccountRepo) SetTempAuthToken(ctx context.Context, accountID, fingerprint string, expires time.Time) error {
	return r.update(ctx, accountID, map[string]interface{}{
		fieldTempAuthToken:   fingerprint,
		fieldTempAuthExpires: expires.UTC(),
	})
}

// ClearTempAuthToken consumes the temp auth token if it is still the one
// identified by fingerprint; otherwise domain.ErrNotFound.
func (r *AccountRepo) ClearTempAuthToken(ctx context.Context, accountID, fingerprint string) error {
	return r.updateIf(ctx, accountID, map[string]interface{}{
		fieldTempAuthToken:   nil,
		fieldTempAuthExpires: nil,
	}, fieldEquals(fieldTempAuthToken, fingerprint), "temp auth token")
}

// ConsumeBackupCode removes usedHash by writing remaining, provided the
// stored list still holds usedHash and nothing else was removed meanwhile.
func (r *AccountRepo) ConsumeBackupCode(ctx context.Context, accountID, usedHash string, remaining []string) error {
	return r.updateIf(ctx, accountID, map[string]interface{}{
		fieldBackupCodeHashes: listOrNil(remaining),
	}, listHolds(fieldBackupCodeHashes, usedHash, len(remaining)+1), "backup code")
}

// update applies fields to an existing account; a missing account yields
// domain.ErrNotFound rather than an upserted stub.
func (r *AccountRepo) update(ctx context.Context, accountID string, updates map[string]interface{}) error {
	return r.updateIf(ctx, accountID, updates, nil, "account")
}

// updateIf is update with an extra condition; when it does not hold the
// write is skipped and domain.ErrNotFound names what.
func (r *AccountRepo) updateIf(ctx context.Context, accountID string, updates map[string]interface{}, cond *condition, what string) error {
	updates[fieldUpdatedAt] = time.Now().UTC()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	condExpr, err := cond.apply("attribute_exists("+fieldAccountID+")", ue)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldAccountID, accountID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String(condExpr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if err != nil {
		return notFoundOnConditionFailure(err, what)
	}
	return nil
}

func (r *AccountRepo) queryGSI(ctx context.Context, index, attr, value string) (*domain.Account, error) {
	if value == "" {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	var a domain.Account
	if err := attributevalue.UnmarshalMap(out.Items[0], &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// listOrNil turns an empty slice into a REMOVE so the attribute disappears
// instead of lingering as an empty list.
func listOrNil(v []string) interface{} {
	if len(v) == 0 {
		return nil
	}
	return v
}
