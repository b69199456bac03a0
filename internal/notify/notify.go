// Package notify defines the outbound safety-integration surface
// (sendMessage, sendApprovalRequest) and two implementations: a plain
// net/http Slack transport against the documented Slack Web API, and a
// no-op fallback. No Slack SDK appears anywhere in the retrieved corpus,
// so this follows the corpus's own pattern of talking to external HTTP
// APIs directly with net/http rather than importing a client library.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"trafficcontrol/internal/logx"
)

// Notifier is the pluggable outbound transport the kernel and safety
// monitors use to reach human operators.
type Notifier interface {
	// SendMessage posts text to channel, optionally threaded under
	// threadTS, and returns the transport's message ID.
	SendMessage(channel, text, threadTS string) (string, error)
	// SendApprovalRequest posts a human-readable approval prompt for
	// task and returns the transport's message ID.
	SendApprovalRequest(taskID, message string) (string, error)
}

// NoopNotifier discards every call. Used when no transport is configured.
type NoopNotifier struct {
	log *logx.Logger
}

// NewNoopNotifier returns a Notifier that only logs.
func NewNoopNotifier() *NoopNotifier {
	return &NoopNotifier{log: logx.NewLogger("notify-noop")}
}

// SendMessage logs text and returns a synthetic message ID.
func (n *NoopNotifier) SendMessage(channel, text, threadTS string) (string, error) {
	n.log.Info("[noop notify -> %s] %s", channel, text)
	return "noop", nil
}

// SendApprovalRequest logs the approval prompt and returns a synthetic
// message ID.
func (n *NoopNotifier) SendApprovalRequest(taskID, message string) (string, error) {
	n.log.Info("[noop approval request for %s] %s", taskID, message)
	return "noop", nil
}

// SlackNotifier posts to the Slack Web API (chat.postMessage) using a
// bare http.Client and a bot token, with no SDK dependency.
type SlackNotifier struct {
	botToken  string
	channelID string
	baseURL   string
	client    *http.Client
	log       *logx.Logger
}

// NewSlackNotifier returns a SlackNotifier posting to channelID with
// botToken. A zero timeout defaults to 10s.
func NewSlackNotifier(botToken, channelID string, timeout time.Duration) *SlackNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SlackNotifier{
		botToken:  botToken,
		channelID: channelID,
		baseURL:   slackPostMessageURL,
		client:    &http.Client{Timeout: timeout},
		log:       logx.NewLogger("notify-slack"),
	}
}

type postMessageRequest struct {
	Channel  string `json:"channel"`
	Text     string `json:"text"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

type postMessageResponse struct {
	OK    bool   `json:"ok"`
	TS    string `json:"ts"`
	Error string `json:"error"`
}

const slackPostMessageURL = "https://slack.com/api/chat.postMessage"

// SendMessage posts text to channel (falling back to the notifier's
// configured channelID if channel is empty).
func (s *SlackNotifier) SendMessage(channel, text, threadTS string) (string, error) {
	if channel == "" {
		channel = s.channelID
	}
	return s.postMessage(postMessageRequest{Channel: channel, Text: text, ThreadTS: threadTS})
}

// SendApprovalRequest posts message to the notifier's configured channel,
// formatted as an approval prompt tagged by taskID.
func (s *SlackNotifier) SendApprovalRequest(taskID, message string) (string, error) {
	text := fmt.Sprintf(":warning: Approval required for task `%s`\n%s", taskID, message)
	return s.postMessage(postMessageRequest{Channel: s.channelID, Text: text})
}

func (s *SlackNotifier) postMessage(req postMessageRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("notify: marshaling slack request: %w", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("notify: building slack request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")
	httpReq.Header.Set("Authorization", "Bearer "+s.botToken)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("notify: slack request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("notify: reading slack response: %w", err)
	}

	var parsed postMessageResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("notify: parsing slack response: %w", err)
	}
	if !parsed.OK {
		return "", fmt.Errorf("notify: slack API error: %s", parsed.Error)
	}
	return parsed.TS, nil
}
