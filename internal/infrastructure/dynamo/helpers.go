package dynamo

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-auth-sessions/internal/domain"
)

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

type updateExpr struct {
	Expr   string
	Names  map[string]string
	Values map[string]types.AttributeValue
}

// buildUpdateExpr converts a map of field->value into a DynamoDB update
// expression. Fields are emitted in sorted order; a nil value REMOVEs the
// attribute instead of setting it.
func buildUpdateExpr(updates map[string]interface{}) (*updateExpr, error) {
	if len(updates) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ue := &updateExpr{
		Names:  make(map[string]string, len(keys)),
		Values: make(map[string]types.AttributeValue, len(keys)),
	}
	var sets, removes []string
	for i, k := range keys {
		nameKey := fmt.Sprintf("#f%d", i)
		ue.Names[nameKey] = k
		v := updates[k]
		if v == nil {
			removes = append(removes, nameKey)
			continue
		}
		valueKey := fmt.Sprintf(":v%d", i)
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal field %s: %w", k, err)
		}
		ue.Values[valueKey] = av
		sets = append(sets, fmt.Sprintf("%s = %s", nameKey, valueKey))
	}

	var parts []string
	if len(sets) > 0 {
		parts = append(parts, "SET "+strings.Join(sets, ", "))
	}
	if len(removes) > 0 {
		parts = append(parts, "REMOVE "+strings.Join(removes, ", "))
	}
	ue.Expr = strings.Join(parts, " ")
	if len(ue.Values) == 0 {
		ue.Values = nil
	}
	return ue, nil
}

// notFoundOnConditionFailure maps a failed attribute_exists condition onto
// domain.ErrNotFound.
func notFoundOnConditionFailure(err error, what string) error {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("%s not found: %w", what, domain.ErrNotFound)
	}
	return err
}

// condition is an extra ConditionExpression clause ANDed onto an update.
// Placeholders use the #c/:c prefixes so they never collide with
// buildUpdateExpr's #f/:v ones.
type condition struct {
	expr   string
	names  map[string]string
	values map[string]interface{}
}

// fieldEquals holds when field currently equals v.
func fieldEquals(field string, v interface{}) *condition {
	return &condition{
		expr:   "#c0 = :c0",
		names:  map[string]string{"#c0": field},
		values: map[string]interface{}{":c0": v},
	}
}

// listHolds holds when the list attribute still contains member and has the
// expected length, i.e. nobody has removed anything from it in between.
func listHolds(field, member string, size int) *condition {
	return &condition{
		expr:   "contains(#c0, :c0) AND size(#c0) = :c1",
		names:  map[string]string{"#c0": field},
		values: map[string]interface{}{":c0": member, ":c1": size},
	}
}

// apply merges the clause into ue and returns the full condition expression.
func (c *condition) apply(base string, ue *updateExpr) (string, error) {
	if c == nil {
		return base, nil
	}
	for k, v := range c.names {
		ue.Names[k] = v
	}
	if ue.Values == nil {
		ue.Values = make(map[string]types.AttributeValue, len(c.values))
	}
	for k, v := range c.values {
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("marshal condition value %s: %w", k, err)
		}
		ue.Values[k] = av
	}
	return base + " AND " + c.expr, nil
}
