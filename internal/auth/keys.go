package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"strings"

	"marketalert/internal/config"
)

// KeyStore exchanges static API keys for user identities. Only digests of
// the keys are kept in memory.
type KeyStore struct {
	keys []keyRecord
}

type keyRecord struct {
	digest [sha256.Size]byte
	userID string
}

func NewKeyStore(keys []config.APIKeyConfig) *KeyStore {
	s := &KeyStore{}
	for _, k := range keys {
		key := strings.TrimSpace(k.Key)
		user := strings.TrimSpace(k.UserID)
		if key == "" || user == "" {
			continue
		}
		s.keys = append(s.keys, keyRecord{digest: sha256.Sum256([]byte(key)), userID: user})
	}
	return s
}

// Validate returns the user owning apiKey. Every record is compared so the
// time taken does not depend on which key matched.
func (s *KeyStore) Validate(apiKey string) (string, bool) {
	apiKey = strings.TrimSpace(apiKey)
	if s == nil || apiKey == "" {
		return "", false
	}
	d := sha256.Sum256([]byte(apiKey))
	var user string
	for _, rec := range s.keys {
		if subtle.ConstantTimeCompare(d[:], rec.digest[:]) == 1 && user == "" {
			user = rec.userID
		}
	}
	return user, user != ""
}

func (s *KeyStore) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}
