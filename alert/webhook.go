package alert

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// WebhookSink POSTs alerts as JSON to an operator-provided endpoint
// (chat-ops relay, paging gateway, ...). A short timeout keeps a dead
// endpoint from stalling the loop.
type WebhookSink struct {
	url        string
	httpClient *http.Client
	log        *zap.Logger
}

func NewWebhookSink(url string, log *zap.Logger) *WebhookSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebhookSink{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

type webhookPayload struct {
	Subject string    `json:"subject"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

func (s *WebhookSink) Notify(subject, message string) bool {
	body, err := json.Marshal(webhookPayload{
		Subject: subject,
		Message: message,
		Time:    time.Now().UTC(),
	})
	if err != nil {
		return false
	}

	resp, err := s.httpClient.Post(s.url, "application/json", bytes.NewReader(body))
	if err != nil {
		s.log.Warn("webhook alert failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.log.Warn("webhook alert rejected", zap.Int("status", resp.StatusCode))
		return false
	}
	return true
}
