package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/knulata/satteli/internal/config"
	"github.com/knulata/satteli/internal/models"
	"github.com/knulata/satteli/internal/services"
)

// GatewaySender delivers WhatsApp and SMS messages through the external
// messaging gateway's HTTP API.
type GatewaySender struct {
	host     string
	port     string
	username string
	password string
	client   *http.Client
}

type gatewayPayload struct {
	IdempotencyKey string `json:"idempotency_key"`
	Channel        string `json:"channel"`
	PhoneNumber    string `json:"phone_number"`
	Text           string `json:"text"`
}

type gatewayResponse struct {
	MessageID string `json:"message_id"`
}

func NewGatewaySender(cfg config.MessageGatewayConfig) *GatewaySender {
	return &GatewaySender{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *GatewaySender) Send(ctx context.Context, req services.SendRequest) (string, error) {
	const op = "GatewaySender.Send"
	log := slog.With("operation", op, "channel", req.Channel)

	url := fmt.Sprintf("%s:%s/message", g.host, g.port)

	payload := gatewayPayload{
		IdempotencyKey: req.NotificationID.String(),
		Channel:        string(req.Channel),
		PhoneNumber:    req.Recipient,
		Text:           fmt.Sprintf("%s\n%s", req.Subject, req.Body),
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal gateway payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.SetBasicAuth(g.username, g.password)
	httpReq.Header.Set("Content-Type", "application/json")

	startTime := time.Now()
	resp, err := g.client.Do(httpReq)
	if err != nil {
		log.Error("Failed to send gateway request", "error", err, "elapsed_time", time.Since(startTime))
		return "", fmt.Errorf("failed to send gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		responseBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			responseBody = fmt.Appendf(nil, "failed to read response body: %v", readErr)
		}
		log.Error("Gateway returned non-success status",
			"status_code", resp.StatusCode,
			"response_body", string(responseBody),
		)
		return "", fmt.Errorf("gateway returned non-success status: %s. Response body: %s", resp.Status, responseBody)
	}

	var gwResp gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&gwResp); err != nil {
		// Accepted but unparseable body; fall back to the idempotency key.
		gwResp.MessageID = req.NotificationID.String()
	}

	log.Info("Message delivered via gateway",
		"status", resp.Status,
		"elapsed_time", time.Since(startTime),
	)
	return gwResp.MessageID, nil
}

// Router fans SendRequests out to the per-channel senders.
type Router struct {
	email   services.Sender
	gateway services.Sender
}

func NewRouter(email, gateway services.Sender) *Router {
	return &Router{email: email, gateway: gateway}
}

func (r *Router) Send(ctx context.Context, req services.SendRequest) (string, error) {
	switch req.Channel {
	case models.ChannelEmail:
		return r.email.Send(ctx, req)
	case models.ChannelWhatsApp, models.ChannelSMS:
		return r.gateway.Send(ctx, req)
	default:
		return "", fmt.Errorf("unsupported notification channel: %s", req.Channel)
	}
}
