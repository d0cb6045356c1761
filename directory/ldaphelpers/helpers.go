package ldaphelpers

import (
	"strings"

	"github.com/go-ldap/ldap/v3"
)

type Filter interface {
	String() string
}

type rawFilter string

func (f rawFilter) String() string {
	return string(f)
}

// Raw wraps an already well-formed filter string.
func Raw(filter string) Filter {
	return rawFilter(filter)
}

// Logical operators
type andFilter struct {
	parts []Filter
}

func And(filters ...Filter) Filter {
	return andFilter{parts: filters}
}
func (f andFilter) String() string {
	var parts []string
	for _, p := range f.parts {
		parts = append(parts, p.String())
	}
	return "(&" + strings.Join(parts, "") + ")"
}

// Eq matches attr against value exactly. The value is escaped.
func Eq(attr, value string) Filter {
	return rawFilter("(" + attr + "=" + ldap.EscapeFilter(value) + ")")
}

// Prefix matches values of attr that start with value. The value is escaped.
func Prefix(attr, value string) Filter {
	return rawFilter("(" + attr + "=" + ldap.EscapeFilter(value) + "*)")
}

func Present(attr string) Filter {
	return rawFilter("(" + attr + "=*)")
}

// RDN builds "attr=value,parent" with value escaped for use in a DN.
func RDN(attr, value, parent string) string {
	return attr + "=" + ldap.EscapeDN(value) + "," + parent
}
