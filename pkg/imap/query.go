package imap

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
)

var ErrUnsupportedQuery = errors.New("unsupported mailbox query")

// Query is the subset of the Gmail search grammar an IMAP mailbox can serve:
// after:, before: and newer_than:. Before is exclusive. After is exclusive
// for an epoch-second after: term and inclusive for dates and newer_than:.
type Query struct {
	After          time.Time
	AfterExclusive bool
	Before         time.Time
}

// ParseQuery reads space-separated after:<epoch|yyyy/mm/dd>, before:<...>
// and newer_than:<n>(d|m|y) terms. An empty query matches everything.
func ParseQuery(q string, now time.Time) (Query, error) {
	var out Query
	for _, term := range strings.Fields(q) {
		key, val, ok := strings.Cut(term, ":")
		if !ok || val == "" {
			return Query{}, fmt.Errorf("%w: %q", ErrUnsupportedQuery, term)
		}
		switch strings.ToLower(key) {
		case "after":
			t, epoch, err := parseInstant(val)
			if err != nil {
				return Query{}, err
			}
			out.tightenAfter(t, epoch)
		case "before":
			t, _, err := parseInstant(val)
			if err != nil {
				return Query{}, err
			}
			if out.Before.IsZero() || t.Before(out.Before) {
				out.Before = t
			}
		case "newer_than":
			t, err := parseRelative(val, now)
			if err != nil {
				return Query{}, err
			}
			out.tightenAfter(t, false)
		default:
			return Query{}, fmt.Errorf("%w: %q", ErrUnsupportedQuery, term)
		}
	}
	return out, nil
}

// tightenAfter keeps the later lower bound; on a tie the exclusive one wins.
func (q *Query) tightenAfter(t time.Time, exclusive bool) {
	switch {
	case q.After.IsZero() || t.After(q.After):
		q.After, q.AfterExclusive = t, exclusive
	case t.Equal(q.After):
		q.AfterExclusive = q.AfterExclusive || exclusive
	}
}

// parseInstant reads epoch seconds or yyyy/mm/dd and reports which it was.
func parseInstant(v string) (time.Time, bool, error) {
	if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(sec, 0), true, nil
	}
	t, err := time.ParseInLocation("2006/01/02", v, time.UTC)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: bad date %q", ErrUnsupportedQuery, v)
	}
	return t, false, nil
}

func parseRelative(v string, now time.Time) (time.Time, error) {
	if len(v) < 2 {
		return time.Time{}, fmt.Errorf("%w: bad age %q", ErrUnsupportedQuery, v)
	}
	n, err := strconv.Atoi(v[:len(v)-1])
	if err != nil || n < 0 {
		return time.Time{}, fmt.Errorf("%w: bad age %q", ErrUnsupportedQuery, v)
	}
	switch v[len(v)-1] {
	case 'd':
		return now.AddDate(0, 0, -n), nil
	case 'm':
		return now.AddDate(0, -n, 0), nil
	case 'y':
		return now.AddDate(-n, 0, 0), nil
	}
	return time.Time{}, fmt.Errorf("%w: bad age unit %q", ErrUnsupportedQuery, v)
}

// Criteria widens the query to whole days for IMAP SEARCH, whose SINCE and
// BEFORE keys compare dates only. Match narrows the result afterwards.
func (q Query) Criteria() *imap.SearchCriteria {
	c := imap.NewSearchCriteria()
	if !q.After.IsZero() {
		a := q.After.UTC()
		c.Since = time.Date(a.Year(), a.Month(), a.Day()-1, 0, 0, 0, 0, time.UTC)
	}
	if !q.Before.IsZero() {
		b := q.Before.UTC()
		c.Before = time.Date(b.Year(), b.Month(), b.Day()+2, 0, 0, 0, 0, time.UTC)
	}
	return c
}

// Match reports whether an internal date falls inside the query window.
func (q Query) Match(t time.Time) bool {
	if !q.After.IsZero() {
		if q.AfterExclusive && !t.After(q.After) {
			return false
		}
		if t.Before(q.After) {
			return false
		}
	}
	if !q.Before.IsZero() && !t.Before(q.Before) {
		return false
	}
	return true
}
