package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// WebhookNotifier posts alerts as text messages to a chat webhook.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	MsgType string       `json:"msgtype"`
	Text    webhookText  `json:"text"`
	Alert   AlertMessage `json:"alert"`
}

type webhookText struct {
	Content string `json:"content"`
}

// NewWebhookNotifier constructs a notifier.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify sends an alert to the webhook.
func (n *WebhookNotifier) Notify(ctx context.Context, msg AlertMessage) error {
	if n == nil || n.url == "" {
		return errors.New("webhook notifier: empty url")
	}
	body, err := json.Marshal(webhookPayload{
		MsgType: "text",
		Text:    webhookText{Content: formatAlertMessage(msg)},
		Alert:   msg,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook notifier: status %d", resp.StatusCode)
	}
	return nil
}

func formatAlertMessage(msg AlertMessage) string {
	var b strings.Builder
	switch msg.Kind {
	case KindNegativePayout:
		b.WriteString("[Settlement Alert] negative payout\n")
	case KindDisputed:
		b.WriteString("[Settlement Alert] disputed by driver\n")
	default:
		b.WriteString("[Settlement Alert]\n")
	}
	if msg.CompanyID != "" {
		fmt.Fprintf(&b, "Company: %s\n", msg.CompanyID)
	}
	if msg.ContractID != "" {
		fmt.Fprintf(&b, "Contract: %s\n", msg.ContractID)
	}
	if msg.SettlementID != "" {
		fmt.Fprintf(&b, "Settlement: %s\n", msg.SettlementID)
	}
	if msg.Period != "" {
		fmt.Fprintf(&b, "Period: %s\n", msg.Period)
	}
	if msg.NetPayout != "" {
		fmt.Fprintf(&b, "Net payout: %s\n", msg.NetPayout)
	}
	if msg.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", msg.Reason)
	}
	return strings.TrimSpace(b.String())
}
