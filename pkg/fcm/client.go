package fcm

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// maxTokensPerMulticast is FCM's documented limit per multicast call.
// Larger batches are chunked transparently.
const maxTokensPerMulticast = 500

// NotificationData contains the content of a push notification.
type NotificationData struct {
	Title string
	Body  string
	Data  map[string]string // Custom data payload passed through to the client
}

// ResultStatus classifies the outcome of a single-token send.
type ResultStatus string

const (
	StatusSuccess        ResultStatus = "success"
	StatusInvalidToken   ResultStatus = "invalid_token"
	StatusTransientError ResultStatus = "transient_error"
)

// SendResult is the per-token outcome of a send operation.
type SendResult struct {
	Token  string
	Status ResultStatus
	Err    error
}

// OK reports whether the token was delivered to.
func (r SendResult) OK() bool { return r.Status == StatusSuccess }

// UserSendReport is the outcome of a user fan-out send. A recipient
// without any active device is a no-op, not an error.
type UserSendReport struct {
	NoRecipients bool
	Results      []SendResult
}

// TopicResult reports a bulk topic subscribe/unsubscribe. Per-token
// failures are listed individually, never as an all-or-nothing error.
type TopicResult struct {
	SuccessCount int
	FailureCount int
	Failed       []TopicError
}

// TopicError names a token that could not be (un)subscribed and why.
type TopicError struct {
	Token  string
	Reason string
}

// TokenSource resolves the active device tokens of a recipient,
// most-recently-used first.
type TokenSource interface {
	ActiveTokens(recipientID string) ([]string, error)
}

// messenger is the slice of *messaging.Client the Client depends on.
type messenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
	SendDryRun(ctx context.Context, message *messaging.Message) (string, error)
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
	SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error)
	UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error)
}

// Client wraps Firebase Cloud Messaging functionality.
type Client struct {
	mc     messenger
	tokens TokenSource
	log    *zap.Logger
}

// NewClient creates an FCM client using the provided credentials file.
func NewClient(ctx context.Context, credentialsFile string, tokens TokenSource, log *zap.Logger) (*Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	mc, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	log.Info("fcm client initialized")
	return &Client{mc: mc, tokens: tokens, log: log}, nil
}

// newClientWithMessenger wires a custom messenger, used by tests.
func newClientWithMessenger(mc messenger, tokens TokenSource, log *zap.Logger) *Client {
	return &Client{mc: mc, tokens: tokens, log: log}
}

// SendToDevice sends a push notification to a single device token.
func (c *Client) SendToDevice(ctx context.Context, token string, notification NotificationData) SendResult {
	_, err := c.mc.Send(ctx, &messaging.Message{
		Token:        token,
		Notification: &messaging.Notification{Title: notification.Title, Body: notification.Body},
		Data:         notification.Data,
	})
	return SendResult{Token: token, Status: classify(err), Err: err}
}

// SendToDevices sends a push notification to multiple device tokens via
// the multicast path. The returned slice has one entry per input token,
// preserving order. The error is non-nil only when a whole multicast
// call failed (network, timeout); per-token failures are in the results.
func (c *Client) SendToDevices(ctx context.Context, tokens []string, notification NotificationData) ([]SendResult, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	results := make([]SendResult, 0, len(tokens))
	for _, chunk := range chunkTokens(tokens, maxTokensPerMulticast) {
		resp, err := c.mc.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens:       chunk,
			Notification: &messaging.Notification{Title: notification.Title, Body: notification.Body},
			Data:         notification.Data,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to send FCM multicast message: %w", err)
		}

		for i, r := range resp.Responses {
			results = append(results, SendResult{Token: chunk[i], Status: classify(r.Error), Err: r.Error})
		}
		c.log.Debug("fcm multicast chunk sent",
			zap.Int("success", resp.SuccessCount),
			zap.Int("failure", resp.FailureCount),
		)
	}
	return results, nil
}

// SendToUser fans a notification out to every active device of a recipient.
func (c *Client) SendToUser(ctx context.Context, recipientID string, notification NotificationData) (UserSendReport, error) {
	tokens, err := c.tokens.ActiveTokens(recipientID)
	if err != nil {
		return UserSendReport{}, fmt.Errorf("failed to resolve tokens for recipient %s: %w", recipientID, err)
	}
	if len(tokens) == 0 {
		return UserSendReport{NoRecipients: true}, nil
	}

	results, err := c.SendToDevices(ctx, tokens, notification)
	if err != nil {
		return UserSendReport{}, err
	}
	return UserSendReport{Results: results}, nil
}

// SendToTopic sends a push notification to all subscribers of a topic.
func (c *Client) SendToTopic(ctx context.Context, topic string, notification NotificationData) error {
	_, err := c.mc.Send(ctx, &messaging.Message{
		Topic:        topic,
		Notification: &messaging.Notification{Title: notification.Title, Body: notification.Body},
		Data:         notification.Data,
	})
	if err != nil {
		return fmt.Errorf("failed to send FCM topic message: %w", err)
	}
	return nil
}

// SubscribeToTopic subscribes the given tokens to a topic.
func (c *Client) SubscribeToTopic(ctx context.Context, topic string, tokens []string) (TopicResult, error) {
	resp, err := c.mc.SubscribeToTopic(ctx, tokens, topic)
	if err != nil {
		return TopicResult{}, fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}
	return topicResult(resp, tokens), nil
}

// UnsubscribeFromTopic removes the given tokens from a topic.
func (c *Client) UnsubscribeFromTopic(ctx context.Context, topic string, tokens []string) (TopicResult, error) {
	resp, err := c.mc.UnsubscribeFromTopic(ctx, tokens, topic)
	if err != nil {
		return TopicResult{}, fmt.Errorf("failed to unsubscribe from topic %s: %w", topic, err)
	}
	return topicResult(resp, tokens), nil
}

// ValidateToken classifies a token as currently deliverable via a
// dry-run send that does not notify the user. A permanently invalid
// token yields (false, nil); transient provider trouble is an error.
func (c *Client) ValidateToken(ctx context.Context, token string) (bool, error) {
	_, err := c.mc.SendDryRun(ctx, &messaging.Message{Token: token})
	switch classify(err) {
	case StatusSuccess:
		return true, nil
	case StatusInvalidToken:
		return false, nil
	default:
		return false, fmt.Errorf("token validation failed: %w", err)
	}
}

// classify maps an FCM error onto the retry taxonomy. "Not registered"
// and "invalid argument" never succeed on retry; everything else
// (network, quota, backend trouble) is transient.
func classify(err error) ResultStatus {
	switch {
	case err == nil:
		return StatusSuccess
	case messaging.IsRegistrationTokenNotRegistered(err), errorutils.IsInvalidArgument(err):
		return StatusInvalidToken
	default:
		return StatusTransientError
	}
}

func topicResult(resp *messaging.TopicManagementResponse, tokens []string) TopicResult {
	result := TopicResult{
		SuccessCount: resp.SuccessCount,
		FailureCount: resp.FailureCount,
	}
	for _, e := range resp.Errors {
		token := ""
		if e.Index >= 0 && e.Index < len(tokens) {
			token = tokens[e.Index]
		}
		result.Failed = append(result.Failed, TopicError{Token: token, Reason: e.Reason})
	}
	return result
}

func chunkTokens(tokens []string, size int) [][]string {
	var chunks [][]string
	for len(tokens) > size {
		chunks = append(chunks, tokens[:size])
		tokens = tokens[size:]
	}
	return append(chunks, tokens)
}
