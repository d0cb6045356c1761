package directory

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"kmc/guildbook/directory/ldaphelpers"

	"github.com/go-ldap/ldap/v3"
	"github.com/mordilloSan/go-logger/logger"
)

var (
	ErrNotFound    = errors.New("entry not found")
	ErrEntryExists = errors.New("entry already exists")
)

// Conn is the subset of an LDAP connection the directory needs.
type Conn interface {
	Bind(username, password string) error
	Search(searchRequest *ldap.SearchRequest) (*ldap.SearchResult, error)
	Add(addRequest *ldap.AddRequest) error
	Close()
}

// Dialer opens a fresh, unbound connection.
type Dialer func(ctx context.Context) (Conn, error)

type ldapConn struct {
	*ldap.Conn
}

func (c ldapConn) Close() {
	c.Conn.Close()
}

// DialURL returns a Dialer for an ldap:// or ldaps:// URL. Every operation on
// the resulting connection is bounded by timeout.
func DialURL(url string, timeout time.Duration) Dialer {
	return func(ctx context.Context) (Conn, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		conn, err := ldap.DialURL(url, ldap.DialWithDialer(&net.Dialer{Timeout: timeout}))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to LDAP server %s: %w", url, err)
		}
		if timeout > 0 {
			conn.SetTimeout(timeout)
		}
		return ldapConn{conn}, nil
	}
}

// Directory reads and writes posix/samba accounts in an LDAP tree. Reads use
// the configured read credentials (anonymous when BindDN is empty); writes are
// always bound as the operator who requested them.
type Directory struct {
	BaseDN       string
	PeopleDN     string
	BindDN       string
	BindPassword string
	PageSize     uint32

	dial Dialer

	mu        sync.Mutex
	domainSID string
}

func NewDirectory(baseDN, peopleDN string, pageSize uint32, dial Dialer) *Directory {
	return &Directory{
		BaseDN:   baseDN,
		PeopleDN: peopleDN,
		PageSize: pageSize,
		dial:     dial,
	}
}

// WithReadCredentials sets the identity used for lookups.
func (d *Directory) WithReadCredentials(bindDN, password string) *Directory {
	d.BindDN = bindDN
	d.BindPassword = password
	return d
}

// EntryDN returns the DN an account with this uid lives at.
func (d *Directory) EntryDN(uid string) string {
	return ldaphelpers.RDN("uid", uid, d.PeopleDN)
}

func (d *Directory) connect(ctx context.Context) (Conn, error) {
	conn, err := d.dial(ctx)
	if err != nil {
		return nil, err
	}
	if d.BindDN != "" {
		if err := conn.Bind(d.BindDN, d.BindPassword); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to bind to LDAP server as %s: %w", d.BindDN, err)
		}
	}
	return conn, nil
}

func (d *Directory) search(ctx context.Context, filter string, attributes []string) ([]*ldap.Entry, error) {
	var entries []*ldap.Entry
	err := d.searchPaged(ctx, filter, attributes, func(page []*ldap.Entry) error {
		entries = append(entries, page...)
		return nil
	})
	return entries, err
}

// searchPaged runs a subtree search below BaseDN and hands every page to
// processPage.
func (d *Directory) searchPaged(
	ctx context.Context, filter string, attributes []string, processPage func(entries []*ldap.Entry) error,
) error {
	conn, err := d.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	pageControl := ldap.NewControlPaging(d.PageSize)
	pageRequest := ldap.NewSearchRequest(
		d.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, 0, false,
		filter,
		attributes,
		[]ldap.Control{pageControl},
	)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		searchResults, err := conn.Search(pageRequest)
		if err != nil {
			return fmt.Errorf("LDAP search %s failed: %w", filter, err)
		}

		if err := processPage(searchResults.Entries); err != nil {
			return fmt.Errorf("processing page failed: %w", err)
		}

		pagingControl, ok := ldap.FindControl(searchResults.Controls, ldap.ControlTypePaging).(*ldap.ControlPaging)
		if !ok || len(pagingControl.Cookie) == 0 {
			break
		}
		pageControl.SetCookie(pagingControl.Cookie)
	}

	return nil
}

// UserExists reports whether any entry carries this uid.
func (d *Directory) UserExists(ctx context.Context, uid string) (bool, error) {
	entries, err := d.search(ctx, ldaphelpers.Eq("uid", uid).String(), []string{"uid"})
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

// MaxUIDNumber returns the highest uidNumber in the tree, or 0 if none.
func (d *Directory) MaxUIDNumber(ctx context.Context) (int, error) {
	maxUID := 0
	err := d.searchPaged(ctx, ldaphelpers.Present("uidNumber").String(), []string{"uidNumber"}, func(entries []*ldap.Entry) error {
		for _, entry := range entries {
			value := entry.GetAttributeValue("uidNumber")
			n, err := strconv.Atoi(value)
			if err != nil {
				logger.Warnf("ignoring malformed uidNumber %q on %s", value, entry.DN)
				continue
			}
			maxUID = max(maxUID, n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return maxUID, nil
}

// MaxRID returns the highest relative identifier among SIDs in domainSID, or 0
// if none.
func (d *Directory) MaxRID(ctx context.Context, domainSID string) (int, error) {
	maxRID := 0
	filter := ldaphelpers.Prefix("sambaSID", domainSID+"-").String()
	err := d.searchPaged(ctx, filter, []string{"sambaSID"}, func(entries []*ldap.Entry) error {
		for _, entry := range entries {
			value := entry.GetAttributeValue("sambaSID")
			prefix, rid, err := SplitRID(value)
			if err != nil {
				logger.Warnf("ignoring malformed sambaSID on %s: %v", entry.DN, err)
				continue
			}
			// The sambaDomain entry itself carries the bare domain SID.
			if prefix != domainSID {
				continue
			}
			maxRID = max(maxRID, rid)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return maxRID, nil
}

// DomainSID looks up the SID of the sambaDomain entry below BaseDN. The value
// never changes for a domain, so the first successful lookup is cached. The
// search runs without holding mu.
func (d *Directory) DomainSID(ctx context.Context) (string, error) {
	d.mu.Lock()
	cached := d.domainSID
	d.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	entries, err := d.search(ctx, ldaphelpers.AllSambaDomains, []string{"sambaDomainName", "sambaSID"})
	if err != nil {
		return "", fmt.Errorf("failed to fetch domain SID: %w", err)
	}
	for _, entry := range entries {
		if sid := entry.GetAttributeValue("sambaSID"); sid != "" {
			logger.Debugf("domain %s has SID %s", entry.GetAttributeValue("sambaDomainName"), sid)
			d.mu.Lock()
			d.domainSID = sid
			d.mu.Unlock()
			return sid, nil
		}
	}
	return "", fmt.Errorf("sambaDomain not found below %s: %w", d.BaseDN, ErrNotFound)
}

// GetUser loads the account with this uid.
func (d *Directory) GetUser(ctx context.Context, uid string) (*User, error) {
	filter := ldaphelpers.And(ldaphelpers.Raw(ldaphelpers.AllPosixAccounts), ldaphelpers.Eq("uid", uid)).String()
	entries, err := d.search(ctx, filter, userAttributes)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("uid %s: %w", uid, ErrNotFound)
	}
	return userFromEntry(entries[0]), nil
}

// AddEntry creates dn bound as the operator bindUID. Nothing is written with
// the directory's own read credentials.
func (d *Directory) AddEntry(ctx context.Context, dn string, attrs []Attribute, bindUID, bindPassword string) error {
	conn, err := d.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	bindDN := d.EntryDN(bindUID)
	if err := conn.Bind(bindDN, bindPassword); err != nil {
		return fmt.Errorf("failed to bind as %s: %w", bindDN, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addRequest := ldap.NewAddRequest(dn, nil)
	for _, attr := range attrs {
		addRequest.Attribute(attr.Name, attr.Values)
	}

	if err := conn.Add(addRequest); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultEntryAlreadyExists) {
			return fmt.Errorf("%s: %w", dn, ErrEntryExists)
		}
		return fmt.Errorf("failed to add %s: %w", dn, err)
	}

	logger.Infof("added %s (bound as %s)", dn, bindDN)
	return nil
}
