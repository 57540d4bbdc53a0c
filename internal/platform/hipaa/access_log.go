package hipaa

import (
	"context"
	"fmt"
	"net"

	"github.com/google/uuid"

	"github.com/ehr/intake/internal/platform/middleware"
	"github.com/ehr/intake/internal/platform/query"
)

// AccessLog persists audit middleware entries to phi_access_log. Rows are
// written on the request's organization-scoped connection so RLS applies.
type AccessLog struct {
	client *query.Client
}

func NewAccessLog(client *query.Client) *AccessLog {
	return &AccessLog{client: client}
}

var _ middleware.AuditRecorder = (*AccessLog)(nil)

// RecordAccess inserts one entry. Requests without a resolved organization
// (rejected before tenancy was established) are not persisted.
func (a *AccessLog) RecordAccess(ctx context.Context, e middleware.AuditEntry) error {
	orgID, err := uuid.Parse(e.OrganizationID)
	if err != nil {
		return nil
	}

	var sessionID *uuid.UUID
	if sid, err := uuid.Parse(e.SessionID); err == nil {
		sessionID = &sid
	}

	var ip *string
	if parsed := net.ParseIP(e.IPAddress); parsed != nil {
		s := parsed.String()
		ip = &s
	}

	sql := fmt.Sprintf(`INSERT INTO %s (
		organization_id, user_id, user_roles, session_id, section, action,
		method, path, status_code, ip_address, user_agent, request_id, accessed_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10::inet,$11,$12,$13)`, a.client.Table("phi_access_log"))

	_, err = query.Exec(ctx, a.client.Conn(ctx), "hipaa.record_access", sql,
		orgID, e.UserID, e.UserRoles, sessionID, e.Section, e.Action,
		e.Method, e.Path, e.StatusCode, ip, e.UserAgent, e.RequestID, e.Timestamp,
	)
	return err
}
