package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// AWSSESAlertService notifies an operator mailbox about new address blocks
// using AWS SES. It implements BlockNotifier.
type AWSSESAlertService struct {
	sesClient   *ses.Client
	fromAddress string
	toAddress   string
	logger      *slog.Logger
}

// NewAWSSESAlertService creates a new AWS SES alert service
func NewAWSSESAlertService(region, fromAddress, toAddress string, logger *slog.Logger) (*AWSSESAlertService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESAlertService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		toAddress:   toAddress,
		logger:      logger,
	}, nil
}

// NotifyBlock sends a block alert email to the operator address
func (s *AWSSESAlertService) NotifyBlock(ctx context.Context, ipAddress string, score int, blockedUntil time.Time) error {
	subject := fmt.Sprintf("Login defense: blocked %s", ipAddress)

	textBody := fmt.Sprintf(`An IP address was blocked after an Attack-level risk score.

IP address:    %s
Risk score:    %d
Blocked until: %s

The block expires automatically. No action is required unless the address
belongs to a known legitimate client.
`, ipAddress, score, blockedUntil.UTC().Format(time.RFC3339))

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{s.toAddress},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send block alert via SES",
			slog.String("ip_address", ipAddress),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("block alert sent",
		slog.String("ip_address", ipAddress),
		slog.String("message_id", *result.MessageId))

	return nil
}
