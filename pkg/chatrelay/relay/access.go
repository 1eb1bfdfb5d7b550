// Package relay – access.go implements the allow-list gate.
//
// The relay either serves everyone (empty allow-list) or only the usernames
// listed in config. Denied senders get a fixed rejection notice and nothing
// else happens: no history mutation, no completion call.
package relay

import "strings"

// Allowlist is the static set of identities permitted to use the relay.
// An empty list means unrestricted access.
type Allowlist struct {
	users []string
}

// NewAllowlist builds an Allowlist from a list of usernames. Entries are
// trimmed; blank entries are dropped, so a config value of "" or ", ,"
// yields an unrestricted list.
func NewAllowlist(users []string) *Allowlist {
	cleaned := make([]string, 0, len(users))
	for _, u := range users {
		if u = strings.TrimSpace(u); u != "" {
			cleaned = append(cleaned, u)
		}
	}
	return &Allowlist{users: cleaned}
}

// ParseAllowlist builds an Allowlist from a comma-separated string, the
// format the ALLOWED_USERNAMES environment variable uses.
func ParseAllowlist(csv string) *Allowlist {
	return NewAllowlist(strings.Split(csv, ","))
}

// IsAllowed reports whether the identity may use the relay: true when the
// list is empty or the identity is a member.
func (a *Allowlist) IsAllowed(identity string) bool {
	if len(a.users) == 0 {
		return true
	}
	for _, u := range a.users {
		if u == identity {
			return true
		}
	}
	return false
}

// Len returns the number of listed identities.
func (a *Allowlist) Len() int { return len(a.users) }

// RejectionNotice is the fixed message sent to denied senders.
const RejectionNotice = "Sorry, you are not allowed to use this bot"
