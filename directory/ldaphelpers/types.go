package ldaphelpers

const (
	AllPosixAccounts = "(objectClass=posixAccount)"
	AllSambaDomains  = "(objectClass=sambaDomain)"
)
