package ircddb

import (
	"strings"
	"time"
)

// ircLine is one minimally-parsed IRC protocol line: optional prefix,
// command, and space-separated params with an optional trailing
// ":"-prefixed last parameter (RFC 1459 §2.3.1).
type ircLine struct {
	prefix  string
	command string
	params  []string
}

func parseIRCLine(raw string) (ircLine, bool) {
	raw = strings.TrimRight(raw, "\r\n")
	if raw == "" {
		return ircLine{}, false
	}

	var l ircLine
	if strings.HasPrefix(raw, ":") {
		sp := strings.IndexByte(raw, ' ')
		if sp < 0 {
			return ircLine{}, false
		}
		l.prefix = raw[1:sp]
		raw = raw[sp+1:]
	}

	if trailer := strings.Index(raw, " :"); trailer >= 0 {
		head := raw[:trailer]
		tail := raw[trailer+2:]
		fields := strings.Fields(head)
		if len(fields) == 0 {
			return ircLine{}, false
		}
		l.command = fields[0]
		l.params = append(fields[1:], tail)
	} else {
		fields := strings.Fields(raw)
		if len(fields) == 0 {
			return ircLine{}, false
		}
		l.command = fields[0]
		l.params = fields[1:]
	}

	return l, true
}

// nickFromPrefix extracts the nick from a "nick!user@host" prefix.
func nickFromPrefix(prefix string) string {
	if i := strings.IndexByte(prefix, '!'); i >= 0 {
		return prefix[:i]
	}
	return prefix
}

// ddbCommand is a decoded ircDDB application-layer command carried as the
// trailing parameter of a PRIVMSG to the channel or to a peer nick (spec
// §4.7 "update language"). The wire form is whitespace-tokenized, command
// keyword first, exactly as original_source/IRCDDBApp.cpp tokenizes it
// (CUtils::stringTokenizer on the PRIVMSG body), e.g.:
//
//	UPDATE 2023-06-01 12:00:00 G4KLX_B G4KLX_G
//	SENDLIST 1 2023-06-01 12:00:00
//	NOT_FOUND G4KLX_B
//	LIST_END
type ddbCommand struct {
	kind   string
	fields []string
}

func parseDDBCommand(text string) (ddbCommand, bool) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return ddbCommand{}, false
	}
	kind := strings.ToUpper(tokens[0])
	switch kind {
	case "UPDATE", "SENDLIST", "FIND", "NOT_FOUND", "LIST_MORE", "LIST_END":
		return ddbCommand{kind: kind, fields: tokens[1:]}, true
	default:
		return ddbCommand{}, false
	}
}

func (c ddbCommand) String() string {
	if len(c.fields) == 0 {
		return c.kind
	}
	return c.kind + " " + strings.Join(c.fields, " ")
}

// dateTimeLayout is the human-readable "<date> <time>" pair ircDDB
// attaches to UPDATE records (spec §4.7 "update language").
const dateTimeLayout = "2006-01-02 15:04:05"

func parseDateTime(date, clock string) (time.Time, bool) {
	t, err := time.Parse(dateTimeLayout, date+" "+clock)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func formatDateTime(t time.Time) (date, clock string) {
	s := t.UTC().Format(dateTimeLayout)
	return s[:10], s[11:]
}
