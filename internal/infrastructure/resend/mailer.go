package resend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/emmegi/catalog-api/internal/config"
)

const baseURL = "https://api.resend.com"

// Mailer sends transactional email through the Resend HTTP API. It satisfies
// the same interface as the SMTP mailer; main picks whichever is configured.
type Mailer struct {
	apiKey string
	from   string
	client *http.Client
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		apiKey: cfg.ResendAPIKey,
		from:   fmt.Sprintf("%s <%s>", cfg.MailFromName, cfg.SMTPFrom),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (m *Mailer) SendEmail(to, subject, body string) error {
	payload, err := json.Marshal(sendRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		HTML:    body,
	})
	if err != nil {
		return fmt.Errorf("marshal resend request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("resend request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("resend returned %d: %s", resp.StatusCode, detail)
	}
	return nil
}
