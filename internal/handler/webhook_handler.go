package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	"github.com/boddenberg/family-rewards-bfa-go/internal/domain"

	"go.uber.org/zap"
)

// WebhookProcessor applies a validated billing event.
type WebhookProcessor interface {
	Process(ctx context.Context, ev *domain.BillingEvent) domain.WebhookResult
}

// webhookHandler answers the billing provider. Authentication is a shared
// secret in the Authorization header, not a per-event signature. Protocol
// errors get 4xx/5xx before anything is written; everything after
// validation is answered 200. A nil svc means no webhook store is
// configured; authenticated POSTs then get 500.
func webhookHandler(svc WebhookProcessor, secret string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		if secret == "" {
			logger.Error("webhook: shared secret not configured", zap.String("step", "auth"))
			writeError(w, http.StatusInternalServerError, "server misconfigured")
			return
		}
		if !validWebhookAuth(r.Header.Get("Authorization"), secret) {
			logger.Warn("webhook: unauthorized",
				zap.String("step", "auth"),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Bool("header_present", r.Header.Get("Authorization") != ""),
			)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if svc == nil {
			handleServiceError(w, &domain.ErrConfiguration{Setting: "webhook store"}, logger)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			logger.Warn("webhook: failed to read body", zap.String("step", "parse"), zap.Error(err))
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		ev, err := parseBillingEvent(body)
		if err != nil {
			logger.Warn("webhook: malformed JSON", zap.String("step", "parse"), zap.Error(err))
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		if ev.ID == "" || ev.Type == "" {
			logger.Warn("webhook: missing event id or type",
				zap.String("step", "parse"),
				zap.String("event_id", ev.ID),
				zap.String("event_type", ev.Type),
			)
			writeError(w, http.StatusBadRequest, "event.id and event.type are required")
			return
		}

		writeJSON(w, http.StatusOK, svc.Process(r.Context(), ev))
	}
}

func validWebhookAuth(header, secret string) bool {
	if header == "" {
		return false
	}
	expected := "Bearer " + secret
	return subtle.ConstantTimeCompare([]byte(header), []byte(expected)) == 1
}

// parseBillingEvent accepts {"event": {...}} as well as the bare event object.
func parseBillingEvent(body []byte) (*domain.BillingEvent, error) {
	var envelope struct {
		Event json.RawMessage `json:"event"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}

	raw := body
	if len(envelope.Event) > 0 && string(envelope.Event) != "null" {
		raw = envelope.Event
	}

	var ev domain.BillingEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
