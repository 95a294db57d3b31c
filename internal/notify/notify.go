// Package notify carries the shipped Notifier implementations. Actual email
// delivery is an external collaborator; the engine only needs something that
// honors the Notifier port.
package notify

import (
	"context"
	"log/slog"
	"time"

	"credready/internal/compliance/ports"
)

// LogNotifier writes notifications to the structured log. Used in development
// and as the default when no delivery provider is wired; the audit trail, not
// the notifier, is the record of what was sent.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendExpirationReminder(ctx context.Context, to ports.Recipient, itemLabel string, daysUntilExpiry int, expiresAt time.Time) error {
	n.logger.InfoContext(ctx, "expiration reminder",
		"recipient", to.Email,
		"item", itemLabel,
		"days_until_expiry", daysUntilExpiry,
		"expires_at", expiresAt,
	)
	return nil
}

func (n *LogNotifier) SendAdminExpirationAlert(ctx context.Context, to ports.Recipient, clinicianName, itemLabel string, daysUntilExpiry int, expiresAt time.Time) error {
	n.logger.InfoContext(ctx, "admin expiration alert",
		"recipient", to.Email,
		"clinician", clinicianName,
		"item", itemLabel,
		"days_until_expiry", daysUntilExpiry,
		"expires_at", expiresAt,
	)
	return nil
}
