package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"claim-service/internal/ports"
)

// ClaimNotifier renders claim workflow notifications and pushes them to the
// notification service. Delivery is best-effort.
type ClaimNotifier struct {
	publisher Publisher
}

func NewClaimNotifier(publisher Publisher) *ClaimNotifier {
	return &ClaimNotifier{publisher: publisher}
}

func (n *ClaimNotifier) Notify(ctx context.Context, userID int64, kind ports.NotificationKind, payload map[string]any) {
	event, ok := renderNotification(userID, kind, payload)
	if !ok {
		slog.Warn("unknown notification kind, dropping", "kind", kind, "user_id", userID)
		return
	}

	if n.publisher == nil {
		slog.Info("notification publisher not configured, logging only",
			"user_id", userID, "kind", kind, "title", event.Title)
		return
	}

	if err := n.publisher.PublishNotification(ctx, event); err != nil {
		slog.Error("failed to publish claim notification",
			"user_id", userID,
			"kind", kind,
			"error", err)
	}
}

func renderNotification(userID int64, kind ports.NotificationKind, payload map[string]any) (NotificationEventPushModel, bool) {
	claimNumber := payloadString(payload, "claimNumber")
	amount := payloadString(payload, "amount")

	event := NotificationEventPushModel{
		LstUserIds: []string{strconv.FormatInt(userID, 10)},
		Data:       map[string]any{"type": string(kind)},
	}
	for k, v := range payload {
		event.Data[k] = v
	}

	switch kind {
	case ports.NotifyClaimApproved:
		event.Title = "Claim Approved!"
		event.Body = fmt.Sprintf("Your claim %s for ₹%s has been approved. Payment will be processed within %s hours.",
			claimNumber, amount, payloadString(payload, "settlementTime"))
	case ports.NotifyClaimSettled:
		event.Title = "Payment Completed!"
		event.Body = fmt.Sprintf("₹%s has been credited to your account for claim %s. Transaction ID: %s",
			amount, claimNumber, payloadString(payload, "transactionId"))
	case ports.NotifyClaimRejected:
		event.Title = "Claim Rejected"
		event.Body = fmt.Sprintf("Your claim %s was not approved. %s", claimNumber, payloadString(payload, "explanation"))
	default:
		return NotificationEventPushModel{}, false
	}
	return event, true
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(v)
}
