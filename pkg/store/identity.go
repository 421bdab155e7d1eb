package store

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
)

const userKeyVersion = "u1"

// UserIdentity names one person across a channel. The derived key is what
// the dispatcher uses so the same Discord user and the same CLI user get
// stable, separate contexts.
type UserIdentity struct {
	Channel string
	ActorID string
}

func (id UserIdentity) Validate() error {
	if strings.TrimSpace(id.Channel) == "" {
		return fmt.Errorf("missing channel")
	}
	if strings.TrimSpace(id.ActorID) == "" {
		return fmt.Errorf("missing actor id")
	}
	return nil
}

func (id UserIdentity) Canonical() string {
	return strings.ToLower(strings.TrimSpace(id.Channel)) + "|" +
		strings.TrimSpace(id.ActorID)
}

// UserKey is the stable store key for this identity.
func (id UserIdentity) UserKey() string {
	sum := sha1.Sum([]byte(id.Canonical()))
	return userKeyVersion + ":" + hex.EncodeToString(sum[:16])
}

func isVersionedUserKey(key string) bool {
	return strings.HasPrefix(strings.TrimSpace(key), userKeyVersion+":")
}

// ResolveUserKey accepts either an already-derived key or raw channel
// identity parts.
func ResolveUserKey(explicitKey, channel, actorID string) (string, error) {
	explicitKey = strings.TrimSpace(explicitKey)
	if isVersionedUserKey(explicitKey) {
		return explicitKey, nil
	}
	identity := UserIdentity{
		Channel: strings.TrimSpace(channel),
		ActorID: strings.TrimSpace(actorID),
	}
	if err := identity.Validate(); err != nil {
		if explicitKey != "" {
			// Legacy fallback for strict backward compatibility.
			return explicitKey, nil
		}
		return "", fmt.Errorf("resolve user identity: %w", err)
	}
	return identity.UserKey(), nil
}
