package notify

import (
	"context"
	"strings"
	"sync"

	"credready/internal/compliance/ports"
	id "credready/pkg/domain"
)

// StaticAdminDirectory serves a fixed recipient list for every org. The real
// admin roster lives in the identity service; this stands in where that
// integration is not wired, typically development and the sweep tests.
type StaticAdminDirectory struct {
	mu     sync.RWMutex
	byOrg  map[id.OrgID][]ports.Recipient
	global []ports.Recipient
}

// NewStaticAdminDirectory parses a comma-separated email list into a
// directory whose entries apply to every org.
func NewStaticAdminDirectory(emails string) *StaticAdminDirectory {
	d := &StaticAdminDirectory{byOrg: make(map[id.OrgID][]ports.Recipient)}
	for _, e := range strings.Split(emails, ",") {
		if e = strings.TrimSpace(e); e != "" {
			d.global = append(d.global, ports.Recipient{Email: e})
		}
	}
	return d
}

// SetOrgAdmins replaces the recipients for one org.
func (d *StaticAdminDirectory) SetOrgAdmins(orgID id.OrgID, admins []ports.Recipient) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byOrg[orgID] = admins
}

func (d *StaticAdminDirectory) ListOrgAdmins(_ context.Context, orgID id.OrgID) ([]ports.Recipient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if admins, ok := d.byOrg[orgID]; ok {
		return admins, nil
	}
	return d.global, nil
}
