package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBaseDN   = "dc=kmc,dc=gr,dc=jp"
	testPeopleDN = "ou=People,dc=kmc,dc=gr,dc=jp"
	testDomain   = "S-1-5-21-1-2-3"
)

type fakeConn struct {
	results  map[string][][]*ldap.Entry // filter -> pages
	searches []*ldap.SearchRequest
	binds    [][2]string
	added    []*ldap.AddRequest
	bindErr  error
	addErr   error
	closed   int
}

func (c *fakeConn) Bind(username, password string) error {
	c.binds = append(c.binds, [2]string{username, password})
	return c.bindErr
}

func (c *fakeConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	c.searches = append(c.searches, req)
	pages := c.results[req.Filter]
	if len(pages) == 0 {
		return &ldap.SearchResult{}, nil
	}

	// the cookie carries the index of the next page
	index := 0
	if paging, ok := ldap.FindControl(req.Controls, ldap.ControlTypePaging).(*ldap.ControlPaging); ok && len(paging.Cookie) > 0 {
		index = int(paging.Cookie[0])
	}

	result := &ldap.SearchResult{Entries: pages[index]}
	if index+1 < len(pages) {
		result.Controls = []ldap.Control{&ldap.ControlPaging{Cookie: []byte{byte(index + 1)}}}
	}
	return result, nil
}

func (c *fakeConn) Add(req *ldap.AddRequest) error {
	if c.addErr != nil {
		return c.addErr
	}
	c.added = append(c.added, req)
	return nil
}

func (c *fakeConn) Close() {
	c.closed++
}

func newTestDirectory(conn *fakeConn) *Directory {
	return NewDirectory(testBaseDN, testPeopleDN, 100, func(ctx context.Context) (Conn, error) {
		return conn, nil
	})
}

func TestUserExists(t *testing.T) {
	conn := &fakeConn{results: map[string][][]*ldap.Entry{
		"(uid=jdoe)": {{ldap.NewEntry("uid=jdoe,"+testPeopleDN, map[string][]string{"uid": {"jdoe"}})}},
	}}
	dir := newTestDirectory(conn)

	found, err := dir.UserExists(context.Background(), "jdoe")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = dir.UserExists(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, found)

	assert.Equal(t, 2, conn.closed)
	assert.Empty(t, conn.binds, "lookups are anonymous without read credentials")
}

func TestUserExists_ReadCredentials(t *testing.T) {
	conn := &fakeConn{}
	dir := newTestDirectory(conn).WithReadCredentials("cn=reader,"+testBaseDN, "secret")

	_, err := dir.UserExists(context.Background(), "jdoe")
	require.NoError(t, err)
	require.Len(t, conn.binds, 1)
	assert.Equal(t, [2]string{"cn=reader," + testBaseDN, "secret"}, conn.binds[0])
}

func TestUserExists_BindFailure(t *testing.T) {
	conn := &fakeConn{bindErr: errors.New("invalid credentials")}
	dir := newTestDirectory(conn).WithReadCredentials("cn=reader,"+testBaseDN, "wrong")

	_, err := dir.UserExists(context.Background(), "jdoe")
	assert.Error(t, err)
	assert.Equal(t, 1, conn.closed)
}

func TestMaxUIDNumber_Paged(t *testing.T) {
	conn := &fakeConn{results: map[string][][]*ldap.Entry{
		"(uidNumber=*)": {
			{
				ldap.NewEntry("uid=a", map[string][]string{"uidNumber": {"1001"}}),
				ldap.NewEntry("uid=b", map[string][]string{"uidNumber": {"garbage"}}),
			},
			{
				ldap.NewEntry("uid=c", map[string][]string{"uidNumber": {"1042"}}),
				ldap.NewEntry("uid=d", map[string][]string{"uidNumber": {"1007"}}),
			},
		},
	}}
	dir := newTestDirectory(conn)

	maxUID, err := dir.MaxUIDNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1042, maxUID)
	assert.Len(t, conn.searches, 2)
}

func TestMaxUIDNumber_Empty(t *testing.T) {
	dir := newTestDirectory(&fakeConn{})

	maxUID, err := dir.MaxUIDNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, maxUID)
}

func TestMaxRID(t *testing.T) {
	conn := &fakeConn{results: map[string][][]*ldap.Entry{
		"(sambaSID=S-1-5-21-1-2-3-*)": {{
			ldap.NewEntry("uid=a", map[string][]string{"sambaSID": {testDomain + "-1100"}}),
			ldap.NewEntry("cn=g", map[string][]string{"sambaSID": {testDomain + "-2001"}}),
			ldap.NewEntry("uid=x", map[string][]string{"sambaSID": {testDomain + "-1-9999"}}),
			ldap.NewEntry("uid=y", map[string][]string{"sambaSID": {"bogus"}}),
		}},
	}}
	dir := newTestDirectory(conn)

	maxRID, err := dir.MaxRID(context.Background(), testDomain)
	require.NoError(t, err)
	assert.Equal(t, 2001, maxRID)
}

func TestDomainSID_Cached(t *testing.T) {
	conn := &fakeConn{results: map[string][][]*ldap.Entry{
		"(objectClass=sambaDomain)": {{
			ldap.NewEntry("sambaDomainName=KMC,"+testBaseDN, map[string][]string{
				"sambaDomainName": {"KMC"},
				"sambaSID":        {testDomain},
			}),
		}},
	}}
	dir := newTestDirectory(conn)

	for i := 0; i < 3; i++ {
		sid, err := dir.DomainSID(context.Background())
		require.NoError(t, err)
		assert.Equal(t, testDomain, sid)
	}
	assert.Len(t, conn.searches, 1)
}

func TestDomainSID_Missing(t *testing.T) {
	dir := newTestDirectory(&fakeConn{})

	_, err := dir.DomainSID(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDomainSID_FailureNotCached(t *testing.T) {
	conn := &fakeConn{}
	dir := newTestDirectory(conn)

	_, err := dir.DomainSID(context.Background())
	require.ErrorIs(t, err, ErrNotFound)

	conn.results = map[string][][]*ldap.Entry{
		"(objectClass=sambaDomain)": {{
			ldap.NewEntry("sambaDomainName=KMC,"+testBaseDN, map[string][]string{"sambaSID": {testDomain}}),
		}},
	}
	sid, err := dir.DomainSID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testDomain, sid)
}

func TestDomainSID_LookupsDoNotQueue(t *testing.T) {
	conn := &fakeConn{results: map[string][][]*ldap.Entry{
		"(objectClass=sambaDomain)": {{
			ldap.NewEntry("sambaDomainName=KMC,"+testBaseDN, map[string][]string{"sambaSID": {testDomain}}),
		}},
	}}
	entered := make(chan struct{})
	release := make(chan struct{})
	first := true
	dir := NewDirectory(testBaseDN, testPeopleDN, 100, func(ctx context.Context) (Conn, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if first {
			first = false
			close(entered)
			<-release
		}
		return conn, nil
	})

	slow := make(chan error, 1)
	go func() {
		_, err := dir.DomainSID(context.Background())
		slow <- err
	}()
	<-entered

	// a second caller gives up on its own context instead of waiting for the
	// slow search to finish
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan error, 1)
	go func() {
		_, err := dir.DomainSID(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("DomainSID waited behind an in-flight search")
	}

	close(release)
	require.NoError(t, <-slow)
	sid, err := dir.DomainSID(ctx)
	require.NoError(t, err, "cached value needs no connection")
	assert.Equal(t, testDomain, sid)
}

func TestGetUser(t *testing.T) {
	filter := "(&(objectClass=posixAccount)(uid=jdoe))"
	conn := &fakeConn{results: map[string][][]*ldap.Entry{
		filter: {{ldap.NewEntry("uid=jdoe,"+testPeopleDN, map[string][]string{
			"uid":       {"jdoe"},
			"cn":        {"John Doe"},
			"uidNumber": {"1043"},
			"gidNumber": {"200"},
			"mail":      {"jdoe@kmc.gr.jp"},
		})}},
	}}
	dir := newTestDirectory(conn)

	user, err := dir.GetUser(context.Background(), "jdoe")
	require.NoError(t, err)
	assert.Equal(t, "John Doe", user.CommonName)
	assert.Equal(t, 1043, user.UIDNumber)
	assert.Equal(t, 200, user.GIDNumber)

	_, err = dir.GetUser(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddEntry_BindsAsOperator(t *testing.T) {
	conn := &fakeConn{}
	dir := newTestDirectory(conn).WithReadCredentials("cn=reader,"+testBaseDN, "secret")

	attrs := []Attribute{
		{Name: "objectClass", Values: []string{"posixAccount", "inetOrgPerson"}},
		{Name: "uid", Values: []string{"jdoe"}},
	}
	err := dir.AddEntry(context.Background(), dir.EntryDN("jdoe"), attrs, "admin", "adminpw")
	require.NoError(t, err)

	require.Len(t, conn.binds, 1)
	assert.Equal(t, [2]string{"uid=admin," + testPeopleDN, "adminpw"}, conn.binds[0])

	require.Len(t, conn.added, 1)
	added := conn.added[0]
	assert.Equal(t, "uid=jdoe,"+testPeopleDN, added.DN)
	require.Len(t, added.Attributes, 2)
	assert.Equal(t, "objectClass", added.Attributes[0].Type)
	assert.Equal(t, []string{"posixAccount", "inetOrgPerson"}, added.Attributes[0].Vals)
}

func TestAddEntry_AlreadyExists(t *testing.T) {
	conn := &fakeConn{addErr: ldap.NewError(ldap.LDAPResultEntryAlreadyExists, errors.New("Already exists"))}
	dir := newTestDirectory(conn)

	err := dir.AddEntry(context.Background(), dir.EntryDN("jdoe"), nil, "admin", "adminpw")
	assert.ErrorIs(t, err, ErrEntryExists)
}

func TestAddEntry_BindFailure(t *testing.T) {
	conn := &fakeConn{bindErr: ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("invalid credentials"))}
	dir := newTestDirectory(conn)

	err := dir.AddEntry(context.Background(), dir.EntryDN("jdoe"), nil, "admin", "wrong")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEntryExists)
	assert.Empty(t, conn.added)
	assert.Equal(t, 1, conn.closed)
}
