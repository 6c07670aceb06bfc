package models

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Status is a registration's position in the approval workflow. Values are
// the lowercase strings stored in the database.
type Status string

const (
	// StatusNoApplication is shown for users without a registration. It is
	// never stored on a row.
	StatusNoApplication   Status = "no application"
	StatusSubmitted       Status = "application submitted"
	StatusInitialApproval Status = "initial approval"
	StatusFinalApproval   Status = "final approval"
	StatusApproved        Status = "approved"
	StatusStickerReleased Status = "sticker released"
	StatusRejected        Status = "rejected"
)

var allStatuses = []Status{
	StatusNoApplication,
	StatusSubmitted,
	StatusInitialApproval,
	StatusFinalApproval,
	StatusApproved,
	StatusStickerReleased,
	StatusRejected,
}

// ParseStatus canonicalizes s. Matching ignores case and surrounding space.
func ParseStatus(s string) (Status, error) {
	normalized := Status(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range allStatuses {
		if st == normalized {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown registration status %q", s)
}

func (s Status) String() string { return string(s) }

// Title returns the display form used in emails, e.g. "Application Submitted".
func (s Status) Title() string {
	return cases.Title(language.English).String(string(s))
}

// IsTerminal reports whether no further transition can leave s.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusStickerReleased
}

// Storable reports whether s may be written to a registration row.
func (s Status) Storable() bool {
	return s != StatusNoApplication && s != ""
}
