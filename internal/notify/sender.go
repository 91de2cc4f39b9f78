// Package notify sends transactional emails for registry events.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Message is one outgoing email
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a Message
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// HTTPSender posts messages to a Resend style JSON API
type HTTPSender struct {
	URL    string
	APIKey string
	From   string
	Client *http.Client
}

// NewHTTPSender returns a sender with a 10 second client timeout
func NewHTTPSender(url, apiKey, from string) *HTTPSender {
	return &HTTPSender{URL: url, APIKey: apiKey, From: from, Client: &http.Client{Timeout: 10 * time.Second}}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

func (s *HTTPSender) Send(ctx context.Context, m Message) error {
	body, err := json.Marshal(sendRequest{From: s.From, To: []string{m.To}, Subject: m.Subject, HTML: m.HTML, Text: m.Text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("email api returned %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}
	return nil
}

// LogSender only logs messages; used when no API key is configured
type LogSender struct{}

func (LogSender) Send(_ context.Context, m Message) error {
	logrus.WithFields(logrus.Fields{"to": m.To, "subject": m.Subject}).Info("email not sent, no API key configured")
	return nil
}
