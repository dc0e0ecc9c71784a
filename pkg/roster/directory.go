// Package roster answers crew membership questions. Delivery paths
// consult it at push time, so a revoked member stops receiving traffic
// without waiting for their connection to cycle.
package roster

import (
	"fmt"
	"sync"

	"crewchat/pkg/config"
	"crewchat/pkg/models"
)

// Directory is the membership oracle the chat layer depends on.
type Directory interface {
	// IsMember reports whether userID belongs to crewID.
	IsMember(crewID, userID string) bool
	// IsOwner reports whether userID owns crewID.
	IsOwner(crewID, userID string) bool
	// Members returns the member IDs of crewID.
	Members(crewID string) []string
	// Exists reports whether crewID is a known, live crew.
	Exists(crewID string) bool
	// GetUser resolves userID to its profile. Unknown users resolve to a
	// profile whose display name is the ID itself.
	GetUser(userID string) models.User
}

type crew struct {
	owner   string
	members map[string]struct{}
}

// StaticDirectory is a Directory seeded from configuration and mutable
// at runtime through the collaborator API.
type StaticDirectory struct {
	mu    sync.RWMutex
	crews map[string]*crew
	users map[string]models.User
}

// NewStaticDirectory builds a directory from the configured crews and
// user profiles. The owner is always a member.
func NewStaticDirectory(crews []config.CrewConfig, users []config.UserConfig) *StaticDirectory {
	d := &StaticDirectory{
		crews: make(map[string]*crew),
		users: make(map[string]models.User, len(users)),
	}
	for _, u := range users {
		d.users[u.ID] = models.User{ID: u.ID, DisplayName: u.DisplayName}
	}
	for _, c := range crews {
		members := make(map[string]struct{}, len(c.Members)+1)
		for _, m := range c.Members {
			members[m] = struct{}{}
		}
		if c.Owner != "" {
			members[c.Owner] = struct{}{}
		}
		d.crews[c.ID] = &crew{owner: c.Owner, members: members}
	}
	return d
}

func (d *StaticDirectory) IsMember(crewID, userID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.crews[crewID]
	if !ok {
		return false
	}
	_, ok = c.members[userID]
	return ok
}

func (d *StaticDirectory) IsOwner(crewID, userID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.crews[crewID]
	return ok && c.owner == userID
}

func (d *StaticDirectory) Members(crewID string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.crews[crewID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(c.members))
	for m := range c.members {
		out = append(out, m)
	}
	return out
}

func (d *StaticDirectory) GetUser(userID string) models.User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if u, ok := d.users[userID]; ok && u.DisplayName != "" {
		return u
	}
	return models.User{ID: userID, DisplayName: userID}
}

func (d *StaticDirectory) Exists(crewID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.crews[crewID]
	return ok
}

// AddMember adds userID to crewID.
func (d *StaticDirectory) AddMember(crewID, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.crews[crewID]
	if !ok {
		return fmt.Errorf("unknown crew %q", crewID)
	}
	c.members[userID] = struct{}{}
	return nil
}

// RemoveMember revokes userID's membership of crewID. Removing the
// owner is refused.
func (d *StaticDirectory) RemoveMember(crewID, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.crews[crewID]
	if !ok {
		return fmt.Errorf("unknown crew %q", crewID)
	}
	if c.owner == userID {
		return fmt.Errorf("cannot remove owner of crew %q", crewID)
	}
	delete(c.members, userID)
	return nil
}

// RemoveCrew tears the crew down. Membership checks for it fail from
// this point on.
func (d *StaticDirectory) RemoveCrew(crewID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.crews[crewID]; !ok {
		return fmt.Errorf("unknown crew %q", crewID)
	}
	delete(d.crews, crewID)
	return nil
}

// AddCrew registers a new crew with its owner as first member.
func (d *StaticDirectory) AddCrew(crewID, owner string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.crews[crewID]; ok {
		return fmt.Errorf("crew %q already exists", crewID)
	}
	d.crews[crewID] = &crew{
		owner:   owner,
		members: map[string]struct{}{owner: {}},
	}
	return nil
}
