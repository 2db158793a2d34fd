package ircddb

import "strings"

// serverNickPrefix marks an IRC channel operator as an ircDDB server
// peer eligible for election (spec §4.7 "server election").
const serverNickPrefix = "s-"

// electServer picks the authoritative server peer from the current
// channel membership: an exact match on preferred wins outright; failing
// that, the first op whose nick shares preferred's 7-character prefix;
// failing that, any op server nick at all. Returns "" if none qualify.
func electServer(users []User, preferred string) string {
	var candidates []string
	for _, u := range users {
		if u.Op && strings.HasPrefix(u.Nick, serverNickPrefix) {
			candidates = append(candidates, u.Nick)
		}
	}
	if len(candidates) == 0 {
		return ""
	}

	if preferred != "" {
		for _, c := range candidates {
			if c == preferred {
				return c
			}
		}
		prefixLen := 7
		if len(preferred) < prefixLen {
			prefixLen = len(preferred)
		}
		for _, c := range candidates {
			if len(c) >= prefixLen && c[:prefixLen] == preferred[:prefixLen] {
				return c
			}
		}
	}

	return candidates[0]
}
