package account

import (
	"strconv"

	"kmc/guildbook/directory"
)

// RegularUserFlags marks a normal, enabled samba user account.
const RegularUserFlags = "[U          ]"

var ObjectClasses = []string{"sambaSamAccount", "inetOrgPerson", "posixAccount", "shadowAccount", "x-kmc-Person"}

// Entry is a new account as written to the directory.
type Entry struct {
	DN            string
	UID           string
	CommonName    string
	Surname       string
	GivenName     string
	UserPassword  string
	GIDNumber     int
	HomeDirectory string
	LoginShell    string
	Mail          string
	AcctFlags     string
	NTPassword    string
	PwdLastSet    int64
	UIDNumber     int
	SambaSID      string
}

// Attributes renders the entry in submission order.
func (e *Entry) Attributes() []directory.Attribute {
	return []directory.Attribute{
		{Name: "objectClass", Values: ObjectClasses},
		{Name: "uid", Values: []string{e.UID}},
		{Name: "cn", Values: []string{e.CommonName}},
		{Name: "sn", Values: []string{e.Surname}},
		{Name: "givenName", Values: []string{e.GivenName}},
		{Name: "userPassword", Values: []string{e.UserPassword}},
		{Name: "gidNumber", Values: []string{strconv.Itoa(e.GIDNumber)}},
		{Name: "homeDirectory", Values: []string{e.HomeDirectory}},
		{Name: "loginShell", Values: []string{e.LoginShell}},
		{Name: "mail", Values: []string{e.Mail}},
		{Name: "sambaAcctFlags", Values: []string{e.AcctFlags}},
		{Name: "sambaNTPassword", Values: []string{e.NTPassword}},
		{Name: "sambaPwdLastSet", Values: []string{strconv.FormatInt(e.PwdLastSet, 10)}},
		{Name: "uidNumber", Values: []string{strconv.Itoa(e.UIDNumber)}},
		{Name: "sambaSID", Values: []string{e.SambaSID}},
	}
}

var secretAttributes = map[string]bool{
	"userPassword":    true,
	"sambaNTPassword": true,
}

// Redacted returns the attribute map with password hashes masked, for logs
// and the audit trail.
func (e *Entry) Redacted() map[string][]string {
	attrs := e.Attributes()
	result := make(map[string][]string, len(attrs))
	for _, attr := range attrs {
		if secretAttributes[attr.Name] {
			result[attr.Name] = []string{"********"}
			continue
		}
		result[attr.Name] = attr.Values
	}
	return result
}
