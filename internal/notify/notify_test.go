package notify

import (
	"context"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scholarswipe/internal/common/config"
	"scholarswipe/internal/common/errors"
	"scholarswipe/internal/common/logger"
	"scholarswipe/internal/models"
)

// ==========================
// Mock Implementations
// ==========================

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, params, optFns...)
}

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, params, optFns...)
}

// ==========================
// Test Helpers
// ==========================

func notificationConfig() config.NotificationConfig {
	var cfg config.NotificationConfig
	cfg.AWS.Region = "us-east-1"
	cfg.AWS.SES.Enabled = true
	cfg.AWS.SES.FromEmail = "noreply@scholarswipe.com"
	cfg.AWS.SES.OpsEmail = "ops@scholarswipe.com"
	cfg.AWS.SNS.Enabled = true
	cfg.AWS.SNS.TopicARN = "arn:aws:sns:us-east-1:000000000000:feedback-alerts"
	return cfg
}

func testFeedback() *models.Feedback {
	return &models.Feedback{
		Name:    "Jordan",
		Email:   "jordan@example.com",
		Subject: "Scores look off",
		Message: "Two cards show the same probability.",
	}
}

// ==========================
// Tests
// ==========================

func TestSubmitFeedback_PersistsAndNotifies(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO feedback").WillReturnResult(sqlmock.NewResult(0, 1))

	emailSent := false
	mockSES := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			emailSent = true
			assert.Equal(t, "ops@scholarswipe.com", params.Destination.ToAddresses[0])
			assert.Equal(t, "noreply@scholarswipe.com", *params.Source)
			assert.Contains(t, *params.Message.Subject.Data, "Scores look off")
			return &ses.SendEmailOutput{}, nil
		},
	}

	alertPublished := false
	mockSNS := &MockSNSService{
		PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			alertPublished = true
			assert.Contains(t, *params.Message, "jordan@example.com")
			return &sns.PublishOutput{}, nil
		},
	}

	s := NewService(notificationConfig(), db, mockSES, mockSNS, logger.NewTestLogger(t))
	feedback := testFeedback()

	assert.NoError(t, s.SubmitFeedback(context.Background(), feedback))
	assert.NotEmpty(t, feedback.ID)
	assert.False(t, feedback.CreatedAt.IsZero())
	assert.True(t, emailSent)
	assert.True(t, alertPublished)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitFeedback_SaveFailureReturnsError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO feedback").WillReturnError(fmt.Errorf("connection reset"))

	notified := false
	mockSES := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			notified = true
			return &ses.SendEmailOutput{}, nil
		},
	}

	s := NewService(notificationConfig(), db, mockSES, nil, logger.NewTestLogger(t))

	err = s.SubmitFeedback(context.Background(), testFeedback())

	var stdErr *errors.StandardError
	assert.ErrorAs(t, err, &stdErr)
	assert.Equal(t, errors.ErrCodeFeedbackSaveFailed, stdErr.Code)
	assert.False(t, notified, "no notifications after a failed save")
}

func TestSubmitFeedback_NotificationFailureDoesNotFailIntake(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO feedback").WillReturnResult(sqlmock.NewResult(0, 1))

	mockSES := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return nil, fmt.Errorf("ses unavailable")
		},
	}
	mockSNS := &MockSNSService{
		PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			return nil, fmt.Errorf("sns unavailable")
		},
	}

	s := NewService(notificationConfig(), db, mockSES, mockSNS, logger.NewTestLogger(t))

	assert.NoError(t, s.SubmitFeedback(context.Background(), testFeedback()))
}

func TestSubmitFeedback_DisabledChannelsSkipClients(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO feedback").WillReturnResult(sqlmock.NewResult(0, 1))

	cfg := notificationConfig()
	cfg.AWS.SES.Enabled = false
	cfg.AWS.SNS.Enabled = false

	called := false
	mockSES := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			called = true
			return &ses.SendEmailOutput{}, nil
		},
	}

	s := NewService(cfg, db, mockSES, nil, logger.NewTestLogger(t))

	assert.NoError(t, s.SubmitFeedback(context.Background(), testFeedback()))
	assert.False(t, called)
}
