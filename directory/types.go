package directory

import (
	"strconv"

	"github.com/go-ldap/ldap/v3"
)

// Attribute is one attribute of an entry about to be written.
type Attribute struct {
	Name   string
	Values []string
}

// User is the read-side view of a posix/samba account.
type User struct {
	DN            string
	UID           string
	CommonName    string
	GivenName     string
	Surname       string
	Mail          string
	UIDNumber     int
	GIDNumber     int
	HomeDirectory string
	LoginShell    string
	SambaSID      string
}

var userAttributes = []string{
	"uid", "cn", "givenName", "sn", "mail",
	"uidNumber", "gidNumber", "homeDirectory", "loginShell", "sambaSID",
}

func userFromEntry(entry *ldap.Entry) *User {
	// malformed numbers read as 0
	uidNumber, _ := strconv.Atoi(entry.GetAttributeValue("uidNumber"))
	gidNumber, _ := strconv.Atoi(entry.GetAttributeValue("gidNumber"))

	return &User{
		DN:            entry.DN,
		UID:           entry.GetAttributeValue("uid"),
		CommonName:    entry.GetAttributeValue("cn"),
		GivenName:     entry.GetAttributeValue("givenName"),
		Surname:       entry.GetAttributeValue("sn"),
		Mail:          entry.GetAttributeValue("mail"),
		UIDNumber:     uidNumber,
		GIDNumber:     gidNumber,
		HomeDirectory: entry.GetAttributeValue("homeDirectory"),
		LoginShell:    entry.GetAttributeValue("loginShell"),
		SambaSID:      entry.GetAttributeValue("sambaSID"),
	}
}
