// Package directory authenticates staff accounts against the corporate
// LDAP server using a search bind.
package directory

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
)

var (
	ErrInvalidCredentials = errors.New("directory: invalid credentials")
	ErrUserNotFound       = errors.New("directory: user not found")
)

// Entry is the subset of directory attributes the portal provisions
// accounts from.
type Entry struct {
	Name              string
	UserPrincipalName string
}

// Authenticator performs a search bind against a directory.
type Authenticator interface {
	// Authenticate verifies the username/password pair and returns the
	// matched entry. Usernames may be given as bare account names or as
	// email addresses; the domain part is stripped before searching.
	Authenticate(ctx context.Context, username, password string) (Entry, error)
}

type Config struct {
	URL          string // e.g. ldaps://dc.example.internal:636
	BindDN       string // service account used for the search
	BindPassword string
	BaseDN       string
	SkipVerify   bool // TLS verification, lab environments only
}

type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg}
}

func (c *Client) Authenticate(ctx context.Context, username, password string) (Entry, error) {
	// The directory rejects empty passwords as anonymous binds, which
	// would succeed and let anyone in.
	if password == "" {
		return Entry{}, ErrInvalidCredentials
	}

	account := username
	if at := strings.Index(account, "@"); at >= 0 {
		account = account[:at]
	}

	conn, err := ldap.DialURL(c.cfg.URL,
		ldap.DialWithTLSConfig(&tls.Config{InsecureSkipVerify: c.cfg.SkipVerify}))
	if err != nil {
		return Entry{}, fmt.Errorf("directory: dial: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 {
			conn.SetTimeout(d)
		}
	}

	if err := conn.Bind(c.cfg.BindDN, c.cfg.BindPassword); err != nil {
		return Entry{}, fmt.Errorf("directory: service bind: %w", err)
	}

	req := ldap.NewSearchRequest(
		c.cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, 0, false,
		fmt.Sprintf("(|(sAMAccountName=%[1]s)(userPrincipalName=%[1]s@*)(name=%[1]s))",
			ldap.EscapeFilter(account)),
		[]string{"name", "userPrincipalName"},
		nil,
	)

	res, err := conn.Search(req)
	if err != nil {
		// SizeLimitExceeded still carries the first match
		if !ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) || res == nil || len(res.Entries) == 0 {
			return Entry{}, fmt.Errorf("directory: search: %w", err)
		}
	}
	if len(res.Entries) == 0 {
		return Entry{}, ErrUserNotFound
	}

	found := res.Entries[0]
	if err := conn.Bind(found.DN, password); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return Entry{}, ErrInvalidCredentials
		}
		return Entry{}, fmt.Errorf("directory: user bind: %w", err)
	}

	return Entry{
		Name:              found.GetAttributeValue("name"),
		UserPrincipalName: found.GetAttributeValue("userPrincipalName"),
	}, nil
}
