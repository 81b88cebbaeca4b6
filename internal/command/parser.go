// Package command implements the administrative command grammar and the
// secret-code destination resolver. Both are pure functions over strings:
// parsing never touches configuration, and resolution never mutates the
// code map it is handed.
package command

import (
	"regexp"
	"strings"
)

// Action discriminates the variants of Command.
type Action int

const (
	// ActionNone means the text is not a command at all; the router must
	// treat it as ordinary message text.
	ActionNone Action = iota
	// ActionAdd registers (or overwrites) a code → destination mapping.
	ActionAdd
	// ActionRemove deletes a code mapping.
	ActionRemove
	// ActionList enumerates the current code map.
	ActionList
)

// Command is the parsed form of an administrative message.
// Code is set for Add and Remove; Destination only for Add.
type Command struct {
	Action      Action
	Code        string
	Destination string
}

// Command grammar. Full-string matches only: trailing or leading extra
// tokens disqualify the text, which then falls through to note handling.
var (
	addRE    = regexp.MustCompile(`(?i)^add\s+code\s+([#A-Za-z0-9_-]+)\s+for\s+group\s+([A-Za-z0-9_]+)$`)
	removeRE = regexp.MustCompile(`(?i)^remove\s+code\s+([#A-Za-z0-9_-]+)$`)
	listRE   = regexp.MustCompile(`(?i)^list\s+codes$`)
)

// Parse classifies a message as an administrative command or ordinary text.
//
// Recognized, case-insensitively, after trimming surrounding whitespace:
//
//	add code <CODE> for group <DESTINATION>
//	remove code <CODE>
//	list codes
//
// CODE admits [#A-Za-z0-9_-]+ and DESTINATION admits [A-Za-z0-9_]+.
// Anything else yields ActionNone.
func Parse(text string) Command {
	text = strings.TrimSpace(text)

	if m := addRE.FindStringSubmatch(text); m != nil {
		return Command{Action: ActionAdd, Code: m[1], Destination: m[2]}
	}
	if m := removeRE.FindStringSubmatch(text); m != nil {
		return Command{Action: ActionRemove, Code: m[1]}
	}
	if listRE.MatchString(text) {
		return Command{Action: ActionList}
	}
	return Command{Action: ActionNone}
}
