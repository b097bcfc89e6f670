package alerts

import (
	"context"
	"database/sql"
	"fmt"
	"html"

	"dispatch-server/internal/clients/mail"
	"dispatch-server/internal/observability"
	"dispatch-server/internal/store"
)

// Service emails operators when an emergency call is reconciled. When email is
// not configured the service is a no-op.
type Service struct {
	mail   *mail.ResendClient
	from   string
	to     string
	logger *observability.Logger
}

// New creates a new Service. mailClient may be nil.
func New(mailClient *mail.ResendClient, from, to string, logger *observability.Logger) *Service {
	return &Service{
		mail:   mailClient,
		from:   from,
		to:     to,
		logger: logger,
	}
}

// SendEmergencyAlert emails the extracted emergency details for a call
func (s *Service) SendEmergencyAlert(ctx context.Context, call store.Call, summary store.StructuredSummary) error {
	if s.mail == nil || s.from == "" || s.to == "" {
		s.logger.Info(ctx, "email alerts not configured, skipping emergency alert")
		return nil
	}

	subject := fmt.Sprintf("Emergency reported on load %s", call.LoadNumber)
	body := s.buildEmergencyBody(call, summary)

	if _, err := s.mail.SendEmail(ctx, s.from, s.to, subject, body); err != nil {
		return fmt.Errorf("failed to send emergency alert: %w", err)
	}

	s.logger.Info(ctx, fmt.Sprintf("sent emergency alert for call %s", call.ID))
	return nil
}

func (s *Service) buildEmergencyBody(call store.Call, summary store.StructuredSummary) string {
	row := func(label string, value sql.NullString) string {
		if !value.Valid {
			return ""
		}
		return fmt.Sprintf("<tr><td><strong>%s</strong></td><td>%s</td></tr>",
			html.EscapeString(label), html.EscapeString(value.String))
	}

	loadSecure := "Unknown"
	if summary.LoadSecure.Valid {
		if summary.LoadSecure.Bool {
			loadSecure = "Yes"
		} else {
			loadSecure = "No"
		}
	}

	return fmt.Sprintf(`
<h2>Emergency escalation</h2>
<p>Driver <strong>%s</strong> on load <strong>%s</strong> reported an emergency.</p>
<table>
%s%s%s%s
<tr><td><strong>Load secure</strong></td><td>%s</td></tr>
</table>
<p>Call ID: %s</p>`,
		html.EscapeString(call.DriverName),
		html.EscapeString(call.LoadNumber),
		row("Emergency type", summary.EmergencyType),
		row("Location", summary.EmergencyLoc),
		row("Safety status", summary.SafetyStatus),
		row("Injury status", summary.InjuryStatus),
		loadSecure,
		call.ID,
	)
}
