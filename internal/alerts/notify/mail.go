package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

type mailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type mailPersonalization struct {
	To []mailAddress `json:"to"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type mailPayload struct {
	Personalizations []mailPersonalization `json:"personalizations"`
	From             mailAddress           `json:"from"`
	Subject          string                `json:"subject"`
	Content          []mailContent         `json:"content"`
}

// MailChannel delivers alert notifications through a SendGrid-compatible
// mail API.
type MailChannel struct {
	cfg      Config
	template *Template
	client   *http.Client
}

// MailOption configures the mail channel.
type MailOption func(*MailChannel)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) MailOption {
	return func(ch *MailChannel) {
		if client != nil {
			ch.client = client
		}
	}
}

// NewMailChannel constructs a mail channel.
func NewMailChannel(cfg Config, opts ...MailOption) (*MailChannel, error) {
	if cfg.APIURL == "" {
		return nil, errors.New("mail channel: empty api url")
	}
	if cfg.From == "" {
		return nil, errors.New("mail channel: empty from address")
	}
	template, err := NewTemplate(cfg.SubjectTemplate, cfg.BodyTemplate)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	channel := &MailChannel{
		cfg:      cfg,
		template: template,
		client:   &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(channel)
	}
	return channel, nil
}

// SendDeviceAlert renders and posts one notification covering all
// recipients. Delivery is a single request; the mail API fans out.
func (m *MailChannel) SendDeviceAlert(ctx context.Context, recipients []string, deviceName, state, timestamp string) error {
	if m == nil || m.client == nil {
		return errors.New("mail channel: nil channel")
	}
	if len(recipients) == 0 {
		return errors.New("mail channel: no recipients")
	}

	subject, body, err := m.template.Render(TemplateData{
		Device:       deviceName,
		State:        state,
		StateLabel:   StateLabel(state),
		Timestamp:    timestamp,
		DashboardURL: m.cfg.DashboardURL,
	})
	if err != nil {
		return err
	}

	to := make([]mailAddress, 0, len(recipients))
	for _, recipient := range recipients {
		if recipient == "" {
			continue
		}
		to = append(to, mailAddress{Email: recipient})
	}
	if len(to) == 0 {
		return errors.New("mail channel: no recipients")
	}

	payload := mailPayload{
		Personalizations: []mailPersonalization{{To: to}},
		From:             mailAddress{Email: m.cfg.From, Name: m.cfg.FromName},
		Subject:          subject,
		Content:          []mailContent{{Type: "text/plain", Value: body}},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.APIURL, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if m.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("mail channel: non-2xx response %d", resp.StatusCode)
	}
	return nil
}
