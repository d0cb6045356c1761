package directory

import (
	"fmt"
	"strconv"
	"strings"
)

// SplitRID splits a string SID such as "S-1-5-21-1-2-3-1105" into its domain
// prefix and trailing relative identifier.
func SplitRID(sid string) (string, int, error) {
	if !strings.HasPrefix(sid, "S-1-") {
		return "", 0, fmt.Errorf("invalid SID %q: missing S-1- prefix", sid)
	}
	i := strings.LastIndexByte(sid, '-')
	if i <= len("S-1") {
		return "", 0, fmt.Errorf("invalid SID %q: no relative identifier", sid)
	}
	if sid[i-1] == '-' {
		return "", 0, fmt.Errorf("invalid SID %q: empty sub-authority", sid)
	}
	rid, err := strconv.Atoi(sid[i+1:])
	if err != nil || rid < 0 {
		return "", 0, fmt.Errorf("invalid SID %q: bad relative identifier", sid)
	}
	return sid[:i], rid, nil
}

// JoinRID appends rid to the domain SID.
func JoinRID(domainSID string, rid int) string {
	return domainSID + "-" + strconv.Itoa(rid)
}
