package reconcile

import (
	"context"
	"strings"
	"sync"
)

// Mode selects how the resolver handles a name with no matching candidate.
type Mode int

const (
	// ModeBatch leaves the name unresolved and annotates the mirror memo.
	ModeBatch Mode = iota
	// ModeInteractive asks an operator for another query or a skip.
	ModeInteractive
)

// ParseMode maps "batch" / "interactive" to a Mode.
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "batch":
		return ModeBatch, true
	case "interactive", "":
		return ModeInteractive, true
	}
	return ModeBatch, false
}

func (m Mode) String() string {
	if m == ModeInteractive {
		return "interactive"
	}
	return "batch"
}

// Kind names the namespace being resolved.
type Kind string

const (
	KindPayee    Kind = "payee"
	KindCategory Kind = "category"
)

// SkipToken typed at a prompt gives up on a name.
const SkipToken = "s"

// Named is a target-side candidate.
type Named struct {
	ID   string
	Name string
}

// Question is what the operator is shown when a name has no match.
type Question struct {
	Kind       Kind
	Name       string
	Attempt    int
	Candidates []Named
}

// Answer is the operator's reply: another query, or skip.
type Answer struct {
	Query string
	Skip  bool
}

// Prompter asks an operator to disambiguate a name.
type Prompter interface {
	Ask(ctx context.Context, q Question) (Answer, error)
}

// Resolution is the outcome for one name.
type Resolution struct {
	Kind Kind
	// Name is the source-side name that was looked up.
	Name string
	// ID is the matched candidate, nil when unresolved.
	ID *string
	// Matched is the candidate name that won.
	Matched string
	// Annotate is set when an unresolved name should be recorded on the mirror memo.
	Annotate bool
}

// Resolved reports whether a candidate was found.
func (r Resolution) Resolved() bool { return r.ID != nil }

// Resolver maps names from one ledger onto ids in the other.
type Resolver struct {
	Mode     Mode
	Prompter Prompter
	// MaxAttempts bounds interactive prompts per name; 0 means unbounded.
	MaxAttempts int

	mu sync.Mutex
}

// FirstMatch returns the first candidate, in list order, whose name contains
// query case-insensitively. Order matters: earlier candidates win even when a
// later one is a closer match.
func FirstMatch(query string, candidates []Named) (Named, bool) {
	q := strings.ToLower(query)
	if q == "" {
		return Named{}, false
	}
	for _, c := range candidates {
		if strings.Contains(strings.ToLower(c.Name), q) {
			return c, true
		}
	}
	return Named{}, false
}

// Resolve looks name up among candidates. An empty name is unresolved
// without search. With no match, batch mode annotates; interactive mode
// prompts until a query matches or the operator skips.
func (r *Resolver) Resolve(ctx context.Context, kind Kind, name string, candidates []Named) (Resolution, error) {
	res := Resolution{Kind: kind, Name: name}
	if strings.TrimSpace(name) == "" {
		return res, nil
	}
	if c, ok := FirstMatch(name, candidates); ok {
		return matched(res, c), nil
	}
	if r.Mode != ModeInteractive || r.Prompter == nil {
		res.Annotate = true
		return res, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for attempt := 1; r.MaxAttempts <= 0 || attempt <= r.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		ans, err := r.Prompter.Ask(ctx, Question{Kind: kind, Name: name, Attempt: attempt, Candidates: candidates})
		if err != nil {
			return res, err
		}
		query := strings.TrimSpace(ans.Query)
		if ans.Skip || strings.EqualFold(query, SkipToken) {
			break
		}
		if c, ok := FirstMatch(query, candidates); ok {
			return matched(res, c), nil
		}
	}
	res.Annotate = true
	return res, nil
}

func matched(res Resolution, c Named) Resolution {
	id := c.ID
	res.ID = &id
	res.Matched = c.Name
	return res
}
