package shared

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/assistente-financeiro/assistente-financeiro/internal/storage"
)

const (
	// ProfileCookie names the cookie carrying the browser profile id.
	ProfileCookie = "af_profile"
	// ProfileKeyPrefix namespaces every per-browser key in the root store.
	ProfileKeyPrefix = "profile:"
	// LastSeenKey records the last request made by a profile.
	LastSeenKey = "lastSeen"
	// CurrentUserKey holds the sanitized projection of the signed-in user.
	CurrentUserKey = "currentUser"
)

// Profile is the server-side stand-in for one browser's local storage.
type Profile struct {
	ID    string
	Store *storage.Prefixed
	isNew bool
}

// IsNew reports whether the profile was created by this request.
func (p *Profile) IsNew() bool {
	return p.isNew
}

// ProfileManager issues profile cookies and resolves their namespaced stores.
type ProfileManager struct {
	root   storage.Store
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewProfileManager constructs a ProfileManager over the installation-wide store. ttl bounds the
// cookie lifetime and matches the idle sweep horizon.
func NewProfileManager(root storage.Store, ttl time.Duration, secure bool) *ProfileManager {
	return &ProfileManager{root: root, ttl: ttl, secure: secure, now: time.Now}
}

// Load returns the profile named by the request cookie, or a fresh one when the cookie is
// missing or malformed.
func (pm *ProfileManager) Load(r *http.Request) *Profile {
	cookie, err := r.Cookie(ProfileCookie)
	if err == nil {
		if id, perr := uuid.Parse(cookie.Value); perr == nil {
			return pm.Open(id.String())
		}
	}
	p := pm.Open(uuid.NewString())
	p.isNew = true
	return p
}

// Open returns the profile with the given id without touching any cookie.
func (pm *ProfileManager) Open(id string) *Profile {
	return &Profile{ID: id, Store: storage.WithPrefix(pm.root, ProfileKeyPrefix+id+":")}
}

// Commit refreshes the profile cookie.
func (pm *ProfileManager) Commit(w http.ResponseWriter, p *Profile) {
	if p == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     ProfileCookie,
		Value:    p.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   pm.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  pm.now().Add(pm.ttl),
	})
}

// Touch stamps the profile's lastSeen key.
func (pm *ProfileManager) Touch(ctx context.Context, p *Profile) error {
	return p.Store.Set(ctx, LastSeenKey, pm.now().UTC().Format(time.RFC3339))
}

// LastSeen returns when the profile last made a request. ok is false when it never did or the
// stamp is unreadable.
func (pm *ProfileManager) LastSeen(ctx context.Context, p *Profile) (time.Time, bool, error) {
	raw, err := p.Store.Get(ctx, LastSeenKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, nil
	}
	return ts, true, nil
}

// IDs lists every profile that owns at least one key.
func (pm *ProfileManager) IDs(ctx context.Context) ([]string, error) {
	keys, err := pm.root.Keys(ctx, ProfileKeyPrefix)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var ids []string
	for _, k := range keys {
		rest := strings.TrimPrefix(k, ProfileKeyPrefix)
		id, _, ok := strings.Cut(rest, ":")
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// Remove deletes every key of the profile.
func (pm *ProfileManager) Remove(ctx context.Context, p *Profile) error {
	keys, err := p.Store.Keys(ctx, "")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return p.Store.Delete(ctx, keys...)
}
