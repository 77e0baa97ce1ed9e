package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/assistente-financeiro/assistente-financeiro/internal/app"
	"github.com/assistente-financeiro/assistente-financeiro/internal/auth"
	"github.com/assistente-financeiro/assistente-financeiro/internal/partition"
	"github.com/assistente-financeiro/assistente-financeiro/internal/platform/httpx"
	"github.com/assistente-financeiro/assistente-financeiro/internal/shared"
	"github.com/assistente-financeiro/assistente-financeiro/internal/users"
)

// ErrWeakPassword is returned when an operator supplies a password the API would reject.
var ErrWeakPassword = errors.New("password needs at least 8 characters with an upper-case letter, a digit and a symbol")

// Ops runs account and profile maintenance directly against the store.
type Ops struct {
	services  *app.Services
	out       io.Writer
	validator *validator.Validate
}

// NewOps builds Ops over composed services.
func NewOps(services *app.Services, out io.Writer) *Ops {
	return &Ops{services: services, out: out, validator: shared.NewValidator()}
}

// CreateUser validates and adds an account.
func (o *Ops) CreateUser(ctx context.Context, in users.CreateInput) (users.User, error) {
	if err := shared.ValidateStruct(o.validator, in); err != nil {
		return users.User{}, fmt.Errorf("invalid account: %s", describeFields(err))
	}
	u, err := o.services.Users.Create(ctx, in)
	if err != nil {
		return users.User{}, err
	}
	fmt.Fprintf(o.out, "created %s (%s) with id %s\n", u.Email, u.Role, u.ID)
	return u, nil
}

// ResetPassword replaces the password of the account with email.
func (o *Ops) ResetPassword(ctx context.Context, email, password string) error {
	if len(password) < 8 || !shared.StrongPassword(password) {
		return ErrWeakPassword
	}
	if err := o.services.Users.ResetPassword(ctx, email, password); err != nil {
		return err
	}
	fmt.Fprintf(o.out, "password of %s reset\n", email)
	return nil
}

// ListUsers prints the directory as a table.
func (o *Ops) ListUsers(ctx context.Context) error {
	list, err := o.services.Users.ListUsers(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(o.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE\tACTIVE\tLAST LOGIN")
	for _, u := range list {
		last := "-"
		if u.LastLogin != nil {
			last = u.LastLogin.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n", u.ID, u.Name, u.Email, u.Role, u.IsActive, last)
	}
	return tw.Flush()
}

// PurgeGuest removes the guest partition of one browser profile.
func (o *Ops) PurgeGuest(ctx context.Context, profileID string) error {
	if profileID == "" {
		return errors.New("profile id required")
	}
	p := o.services.Profiles.Open(profileID)
	if err := partition.PurgeGuest(ctx, p.Store); err != nil {
		return err
	}
	fmt.Fprintf(o.out, "guest data of profile %s purged\n", profileID)
	return nil
}

// session keeps the token of a CLI profile in the store instead of a cookie.
func (o *Ops) session(profileID string) *auth.Session {
	p := o.services.Profiles.Open(profileID)
	return auth.NewSession(auth.StorageTokens{Store: p.Store}, p.Store)
}

// Login signs email in on profileID and keeps the token in the store.
func (o *Ops) Login(ctx context.Context, profileID, email, password string) (users.User, error) {
	u, err := o.services.Auth.Login(ctx, o.session(profileID), auth.LoginInput{Email: email, Password: password})
	if err != nil {
		return users.User{}, err
	}
	fmt.Fprintf(o.out, "signed in as %s on profile %s\n", u.Email, profileID)
	return u, nil
}

// WhoAmI restores the session of profileID. It returns nil when nobody is signed in.
func (o *Ops) WhoAmI(ctx context.Context, profileID string) (*users.User, error) {
	u, err := o.services.Restorer.Restore(ctx, o.session(profileID))
	if err != nil {
		return nil, err
	}
	if u == nil {
		fmt.Fprintln(o.out, "not signed in")
		return nil, nil
	}
	fmt.Fprintf(o.out, "%s (%s, %s)\n", u.Email, u.Name, u.Role)
	return u, nil
}

// Logout ends the session of profileID.
func (o *Ops) Logout(ctx context.Context, profileID string) error {
	return o.services.Auth.Logout(ctx, o.session(profileID))
}

func describeFields(err error) string {
	var verr *httpx.ValidationError
	if !errors.As(err, &verr) || len(verr.Fields) == 0 {
		return err.Error()
	}
	names := make([]string, 0, len(verr.Fields))
	for name := range verr.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+verr.Fields[name])
	}
	return strings.Join(parts, "; ")
}
