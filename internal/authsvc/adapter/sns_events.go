package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/decode-platform/auth-service/internal/authsvc/app"
)

// snsPublisher is a narrow, consumer-defined interface for the subset of SNS
// operations the event publisher needs. The real *sns.Client satisfies it.
type snsPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Compile-time interface satisfaction checks.
var _ app.EventPublisher = (*SNSEventPublisher)(nil)
var _ app.EventPublisher = (*LogEventPublisher)(nil)

// SNSEventPublisher emits service events on Amazon SNS topics. One topic per
// event family: email dispatch, user lifecycle, notifications.
type SNSEventPublisher struct {
	client            snsPublisher
	emailTopic        string
	userEventTopic    string
	notificationTopic string
}

// SNSEventPublisherConfig holds the topic ARNs for each event family.
type SNSEventPublisherConfig struct {
	EmailTopicARN        string
	UserEventTopicARN    string
	NotificationTopicARN string
}

// NewSNSEventPublisher creates an SNSEventPublisher backed by the given SNS
// client.
func NewSNSEventPublisher(client snsPublisher, cfg SNSEventPublisherConfig) *SNSEventPublisher {
	return &SNSEventPublisher{
		client:            client,
		emailTopic:        cfg.EmailTopicARN,
		userEventTopic:    cfg.UserEventTopicARN,
		notificationTopic: cfg.NotificationTopicARN,
	}
}

// PublishEmailRequest publishes an email-dispatch event.
func (p *SNSEventPublisher) PublishEmailRequest(ctx context.Context, req app.EmailRequest) error {
	return p.publish(ctx, p.emailTopic, "email_request", req)
}

// PublishUserCreated publishes a user-created lifecycle event.
func (p *SNSEventPublisher) PublishUserCreated(ctx context.Context, evt app.UserCreatedEvent) error {
	return p.publish(ctx, p.userEventTopic, "user_created", evt)
}

// PublishNotification publishes a notification event.
func (p *SNSEventPublisher) PublishNotification(ctx context.Context, evt app.NotificationEvent) error {
	return p.publish(ctx, p.notificationTopic, "notification", evt)
}

func (p *SNSEventPublisher) publish(ctx context.Context, topicARN, kind string, payload any) error {
	ctx, span := tracer.Start(ctx, "sns.publish")
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.system", "sns"),
		attribute.String("messaging.destination", topicARN),
		attribute.String("messaging.event_kind", kind),
	)

	raw, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("sns events: marshal %s: %w", kind, err)
	}
	message := string(raw)

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: &topicARN,
		Message:  &message,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("sns events: publish %s: %w", kind, err)
	}
	return nil
}

// LogEventPublisher is a fake EventPublisher that logs events instead of
// publishing them. Suitable for local development where no message bus runs.
type LogEventPublisher struct {
	logger *slog.Logger
}

// NewLogEventPublisher creates a LogEventPublisher that writes events to the
// given structured logger.
func NewLogEventPublisher(logger *slog.Logger) *LogEventPublisher {
	return &LogEventPublisher{logger: logger}
}

// PublishEmailRequest logs the email request with the address masked.
func (p *LogEventPublisher) PublishEmailRequest(ctx context.Context, req app.EmailRequest) error {
	p.logger.InfoContext(ctx, "email request (log-only)",
		slog.String("type", req.Type),
		slog.String("email", maskEmail(req.Data.Email)),
	)
	return nil
}

// PublishUserCreated logs the user-created event.
func (p *LogEventPublisher) PublishUserCreated(ctx context.Context, evt app.UserCreatedEvent) error {
	p.logger.InfoContext(ctx, "user created (log-only)",
		slog.String("user_id", evt.UserID),
		slog.String("username", evt.Username),
	)
	return nil
}

// PublishNotification logs the notification event.
func (p *LogEventPublisher) PublishNotification(ctx context.Context, evt app.NotificationEvent) error {
	p.logger.InfoContext(ctx, "notification (log-only)",
		slog.String("user_id", evt.UserID),
		slog.String("kind", evt.Kind),
	)
	return nil
}

// maskEmail hides the local part of an address except its first character.
func maskEmail(email string) string {
	for i, r := range email {
		if r == '@' {
			if i <= 1 {
				return "***" + email[i:]
			}
			return email[:1] + "***" + email[i:]
		}
	}
	return "***"
}
