package shared

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"time"

	"github.com/assistente-financeiro/assistente-financeiro/internal/storage"
)

const (
	// CSRFProfileKey is the profile key holding the token.
	CSRFProfileKey = "csrfToken"
	// CSRFHeader carries the token on unsafe requests.
	CSRFHeader = "X-CSRF-Token"
)

// CSRFManager issues and verifies CSRF tokens bound to a browser profile.
type CSRFManager struct {
	secret []byte
}

// NewCSRFManager returns a CSRFManager using the provided secret key.
func NewCSRFManager(secret string) *CSRFManager {
	return &CSRFManager{secret: []byte(secret)}
}

// EnsureToken retrieves or generates the CSRF token for the profile.
func (m *CSRFManager) EnsureToken(ctx context.Context, p *Profile) (string, error) {
	if p == nil {
		return "", errors.New("profile missing")
	}
	token, err := p.Store.Get(ctx, CSRFProfileKey)
	if err == nil && token != "" {
		return token, nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}
	token = m.generateToken(p.ID)
	if err := p.Store.Set(ctx, CSRFProfileKey, token); err != nil {
		return "", err
	}
	return token, nil
}

// VerifyToken compares the supplied token with the profile token.
func (m *CSRFManager) VerifyToken(ctx context.Context, p *Profile, token string) error {
	if p == nil || token == "" {
		return ErrCSRFTokenMissing
	}
	expected, err := p.Store.Get(ctx, CSRFProfileKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrCSRFTokenMissing
		}
		return err
	}
	if !hmac.Equal([]byte(expected), []byte(token)) {
		return ErrCSRFTokenMismatch
	}
	return nil
}

func (m *CSRFManager) generateToken(profileID string) string {
	mac := hmac.New(sha256.New, m.secret)
	_, _ = mac.Write([]byte(profileID))
	_, _ = mac.Write([]byte{'|'})
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(time.Now().UnixNano()))
	_, _ = mac.Write(buf)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
