package whatsapp

import (
	"strings"

	"github.com/talkincode/wagate/internal/errs"
	waTypes "go.mau.fi/whatsmeow/types"
)

var recipientServers = map[string]bool{
	waTypes.DefaultUserServer: true,
	waTypes.GroupServer:       true,
	waTypes.BroadcastServer:   true,
	waTypes.HiddenUserServer:  true,
}

// ParseJID accepts a full JID or a bare phone number. Bare numbers are
// stripped of formatting and addressed to the user server.
func ParseJID(raw string) (waTypes.JID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return waTypes.EmptyJID, errs.Validation("recipient is required")
	}
	if strings.Contains(raw, "@") {
		jid, err := waTypes.ParseJID(raw)
		if err != nil || jid.User == "" || !recipientServers[jid.Server] {
			return waTypes.EmptyJID, errs.Validation("invalid jid %q", raw)
		}
		return jid, nil
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if digits == "" {
		return waTypes.EmptyJID, errs.Validation("invalid phone number %q", raw)
	}
	return waTypes.NewJID(digits, waTypes.DefaultUserServer), nil
}

// ParseGroupJID accepts a group JID with or without its server part.
func ParseGroupJID(raw string) (waTypes.JID, error) {
	raw = strings.TrimSpace(raw)
	if raw != "" && !strings.Contains(raw, "@") {
		raw += "@" + waTypes.GroupServer
	}
	jid, err := ParseJID(raw)
	if err != nil {
		return jid, err
	}
	if jid.Server != waTypes.GroupServer {
		return waTypes.EmptyJID, errs.Validation("%q is not a group", raw)
	}
	return jid, nil
}

// parseJIDs parses every participant, failing on the first invalid one.
func parseJIDs(raw []string) ([]waTypes.JID, error) {
	out := make([]waTypes.JID, 0, len(raw))
	for _, r := range raw {
		jid, err := ParseJID(r)
		if err != nil {
			return nil, err
		}
		out = append(out, jid)
	}
	return out, nil
}
