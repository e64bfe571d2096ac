// Package suggest proposes email pairs that probably belong to the same attendee.
//
// Two signals are unioned: a client id shared by several addresses (fingerprint), and
// string similarity between the addresses. Suggestions are advisory; nothing here writes
// records except an explicit Apply.
package suggest

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/net/publicsuffix"
)

const DefaultLimit = 24

type Signal string

const (
	SignalFingerprint Signal = "fingerprint"
	SignalSimilarity  Signal = "similarity"
)

// syntheticPrefixes mark client ids minted for manual entry or imports, which say nothing
// about the attendee's device.
var syntheticPrefixes = []string{"manual-", "import-"}

type Suggestion struct {
	EmailA      string   `json:"email_a"`
	EmailB      string   `json:"email_b"`
	NameA       string   `json:"name_a"`
	NameB       string   `json:"name_b"`
	Distance    int      `json:"distance"`
	Signals     []Signal `json:"signals"`
	RecordCount int      `json:"record_count"`
}

func (s Suggestion) hasFingerprint() bool {
	for _, sig := range s.Signals {
		if sig == SignalFingerprint {
			return true
		}
	}
	return false
}

// Pair orders two addresses so that (a,b) and (b,a) share one identity.
func Pair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// Similarity reports whether two distinct normalized addresses look alike and, if so,
// their distance score. It is symmetric in its arguments.
func Similarity(a, b string) (int, bool) {
	localA, domainA, okA := split(a)
	localB, domainB, okB := split(b)
	if !okA || !okB || a == b {
		return 0, false
	}
	localA, localB = normalizeLocal(localA), normalizeLocal(localB)

	localDist := levenshtein.ComputeDistance(localA, localB)

	if localA == localB && domainA != domainB && tldVariant(domainA, domainB) {
		return localDist, true
	}

	domainDist := levenshtein.ComputeDistance(domainA, domainB)
	if domainDist > 2 {
		return 0, false
	}
	if localDist <= localThreshold(localA, localB) || overlaps(localA, localB) {
		return localDist + min(domainDist, 3), true
	}
	return 0, false
}

// localThreshold allows one edit per four characters of the longer local part, at
// least one and at most three.
func localThreshold(a, b string) int {
	longest := max(len([]rune(a)), len([]rune(b)))
	return min(max(1, longest/4), 3)
}

// overlaps reports whether the shorter local part, of at least four characters, is
// contained in the longer one.
func overlaps(a, b string) bool {
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	return len([]rune(short)) >= 4 && strings.Contains(long, short)
}

// tldVariant reports whether two domains name the same registrable organization under
// different public suffixes, as in example.com and example.co.uk. Subdomains must match too.
func tldVariant(a, b string) bool {
	subA, nameA, suffixA, okA := registrable(a)
	subB, nameB, suffixB, okB := registrable(b)
	return okA && okB && nameA == nameB && subA == subB && suffixA != suffixB
}

// registrable splits a domain into its subdomain, the label left of the public suffix, and
// the public suffix: cs.cmu.edu is ("cs", "cmu", "edu").
func registrable(domain string) (sub, name, suffix string, ok bool) {
	etld1, err := publicsuffix.EffectiveTLDPlusOne(domain)
	if err != nil {
		return "", "", "", false
	}
	name, suffix, ok = strings.Cut(etld1, ".")
	if !ok || name == "" {
		return "", "", "", false
	}
	sub = strings.TrimSuffix(strings.TrimSuffix(domain, etld1), ".")
	return sub, name, suffix, true
}

func split(email string) (local, domain string, ok bool) {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", "", false
	}
	return email[:at], email[at+1:], true
}

func normalizeLocal(local string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, local)
}

func synthetic(clientID string) bool {
	if clientID == "" {
		return true
	}
	for _, p := range syntheticPrefixes {
		if strings.HasPrefix(clientID, p) {
			return true
		}
	}
	return false
}

func sortSuggestions(list []Suggestion) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if fa, fb := a.hasFingerprint(), b.hasFingerprint(); fa != fb {
			return fa
		}
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.RecordCount != b.RecordCount {
			return a.RecordCount > b.RecordCount
		}
		if a.EmailA != b.EmailA {
			return a.EmailA < b.EmailA
		}
		return a.EmailB < b.EmailB
	})
}
