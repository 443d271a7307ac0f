// Package notify handles feedback intake: the record is persisted first,
// then operators are notified over SES and optionally SNS. Notification
// failures are logged and swallowed so a broken mail path never loses the
// feedback itself.
package notify

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"

	"scholarswipe/internal/common/config"
	"scholarswipe/internal/common/errors"
	"scholarswipe/internal/common/logger"
	"scholarswipe/internal/models"
)

// Interfaces over the AWS clients so tests can mock them.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Service struct {
	config    config.NotificationConfig
	db        *sql.DB
	logger    logger.Logger
	sesClient SESService
	snsClient SNSService
	now       func() time.Time
}

func NewService(cfg config.NotificationConfig, db *sql.DB, sesClient SESService, snsClient SNSService, log logger.Logger) *Service {
	return &Service{
		config:    cfg,
		db:        db,
		logger:    log.WithFields(map[string]interface{}{"component": "notify"}),
		sesClient: sesClient,
		snsClient: snsClient,
		now:       time.Now,
	}
}

// SubmitFeedback persists the record and fires the ops notifications.
// Only the persistence step can fail the call.
func (s *Service) SubmitFeedback(ctx context.Context, feedback *models.Feedback) error {
	feedback.ID = uuid.New().String()
	feedback.CreatedAt = s.now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, name, email, subject, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		feedback.ID, feedback.Name, feedback.Email, feedback.Subject,
		feedback.Message, feedback.CreatedAt)
	if err != nil {
		return errors.NewFeedbackSaveFailedError(err)
	}

	s.logger.Info("feedback saved", map[string]interface{}{
		"feedbackId": feedback.ID,
	})

	s.notifyOps(ctx, feedback)
	return nil
}

func (s *Service) notifyOps(ctx context.Context, feedback *models.Feedback) {
	if s.config.AWS.SES.Enabled && s.sesClient != nil {
		if err := s.sendOpsEmail(ctx, feedback); err != nil {
			s.logger.Error("ops email failed", map[string]interface{}{
				"feedbackId": feedback.ID,
				"error":      err.Error(),
			})
		}
	}

	if s.config.AWS.SNS.Enabled && s.snsClient != nil {
		if err := s.publishAlert(ctx, feedback); err != nil {
			s.logger.Error("ops alert publish failed", map[string]interface{}{
				"feedbackId": feedback.ID,
				"error":      err.Error(),
			})
		}
	}
}

func (s *Service) sendOpsEmail(ctx context.Context, feedback *models.Feedback) error {
	subject := "New feedback: " + feedback.Subject
	if feedback.Subject == "" {
		subject = "New feedback received"
	}

	body := fmt.Sprintf("From: %s <%s>\n\n%s\n\nFeedback ID: %s",
		feedback.Name, feedback.Email, feedback.Message, feedback.ID)

	_, err := s.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{s.config.AWS.SES.OpsEmail},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(s.config.AWS.SES.FromEmail),
	})
	return err
}

func (s *Service) publishAlert(ctx context.Context, feedback *models.Feedback) error {
	_, err := s.snsClient.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.config.AWS.SNS.TopicARN),
		Subject:  aws.String("scholarswipe-feedback"),
		Message:  aws.String(fmt.Sprintf("feedback %s from %s", feedback.ID, feedback.Email)),
	})
	return err
}
