package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/go-auth-sessions/internal/domain"
)

type publishAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Publisher sends security events to an SNS topic as JSON, tagged with an
// event_type message attribute so subscribers can filter.
type Publisher struct {
	client   publishAPI
	topicARN string
}

func NewPublisher(awsCfg aws.Config, topicARN string) *Publisher {
	return &Publisher{client: sns.NewFromConfig(awsCfg), topicARN: topicARN}
}

func (p *Publisher) Publish(ctx context.Context, ev domain.SecurityEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal security event: %w", err)
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Subject:  aws.String("security event: " + string(ev.Type)),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(string(ev.Type))},
		},
	})
	if err != nil {
		return fmt.Errorf("publish security event: %w", err)
	}
	return nil
}
