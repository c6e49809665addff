package booking

import (
	"errors"
	"strings"

	"tripplanner/models"
)

var friendly = []struct {
	err  error
	text string
}{
	{models.ErrLedgerCorrupted, "Something went wrong with the budget. Please start a new plan."},
	{models.ErrAuthUnavailable, "The booking service is unavailable right now. Please try again in a few minutes."},
	{models.ErrLocationNotFound, "I couldn't find that place. Try a nearby city or add its airport code, e.g. \"Lyon (LYS)\"."},
	{models.ErrProviderQueryFailed, "The search didn't go through. Please try again."},
	{models.ErrBudgetExceeded, "That doesn't fit in your remaining budget."},
	{models.ErrInvalidTransition, "That can't be done right now."},
	{models.ErrInvalidInput, "That input doesn't look right."},
	{models.ErrNotFound, "Nothing was found."},
}

// UserMessage turns an error from a session into text for the traveler. The
// detail wrapped around a known error is appended to its message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, f := range friendly {
		if !errors.Is(err, f.err) {
			continue
		}
		if errors.Is(err, models.ErrLedgerCorrupted) || errors.Is(err, models.ErrAuthUnavailable) {
			return f.text
		}
		if detail := detailOf(err, f.err); detail != "" {
			return f.text + " " + upperFirst(detail) + "."
		}
		return f.text
	}
	return "Unexpected error: " + err.Error()
}

// detailOf returns what was wrapped around sentinel, e.g. "no flight is
// booked" from "invalid transition: no flight is booked".
func detailOf(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		return strings.TrimSuffix(strings.TrimSpace(msg[i+len(prefix):]), ".")
	}
	return ""
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
