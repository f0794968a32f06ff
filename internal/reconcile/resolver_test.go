package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type scriptedPrompter struct {
	answers   []Answer
	questions []Question
	err       error
}

func (p *scriptedPrompter) Ask(_ context.Context, q Question) (Answer, error) {
	p.questions = append(p.questions, q)
	if p.err != nil {
		return Answer{}, p.err
	}
	if len(p.answers) == 0 {
		return Answer{Skip: true}, nil
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

var shops = []Named{
	{ID: "p1", Name: "The Coffee Shop Downtown"},
	{ID: "p2", Name: "Gas Station"},
	{ID: "p3", Name: "Coffee Roasters"},
}

func TestFirstMatch(t *testing.T) {
	c, ok := FirstMatch("Coffee Shop", shops)
	require.True(t, ok)
	require.Equal(t, "p1", c.ID)

	c, ok = FirstMatch("coffee", shops)
	require.True(t, ok)
	require.Equal(t, "p1", c.ID, "earlier candidate wins")

	_, ok = FirstMatch("Bakery", shops)
	require.False(t, ok)

	_, ok = FirstMatch("", shops)
	require.False(t, ok)
}

func TestResolveEmptyName(t *testing.T) {
	p := &scriptedPrompter{}
	r := &Resolver{Mode: ModeInteractive, Prompter: p}
	res, err := r.Resolve(context.Background(), KindPayee, "  ", shops)
	require.NoError(t, err)
	require.False(t, res.Resolved())
	require.False(t, res.Annotate)
	require.Empty(t, p.questions)
}

func TestResolveBatchAnnotates(t *testing.T) {
	r := &Resolver{Mode: ModeBatch}
	res, err := r.Resolve(context.Background(), KindCategory, "Pets", shops)
	require.NoError(t, err)
	require.False(t, res.Resolved())
	require.True(t, res.Annotate)
	require.Equal(t, "Pets", res.Name)

	res, err = r.Resolve(context.Background(), KindPayee, "gas", shops)
	require.NoError(t, err)
	require.Equal(t, "p2", *res.ID)
	require.Equal(t, "Gas Station", res.Matched)
}

func TestResolveInteractiveRequery(t *testing.T) {
	p := &scriptedPrompter{answers: []Answer{{Query: "nothing here"}, {Query: "  roasters "}}}
	r := &Resolver{Mode: ModeInteractive, Prompter: p}
	res, err := r.Resolve(context.Background(), KindPayee, "Bean Bar", shops)
	require.NoError(t, err)
	require.Equal(t, "p3", *res.ID)
	require.False(t, res.Annotate)
	require.Len(t, p.questions, 2)
	require.Equal(t, 1, p.questions[0].Attempt)
	require.Equal(t, 2, p.questions[1].Attempt)
	require.Equal(t, "Bean Bar", p.questions[1].Name)
	require.Equal(t, shops, p.questions[0].Candidates)
}

func TestResolveInteractiveSkip(t *testing.T) {
	for _, ans := range []Answer{{Query: "s"}, {Query: "S"}, {Skip: true}} {
		p := &scriptedPrompter{answers: []Answer{ans}}
		r := &Resolver{Mode: ModeInteractive, Prompter: p}
		res, err := r.Resolve(context.Background(), KindPayee, "Bean Bar", shops)
		require.NoError(t, err)
		require.False(t, res.Resolved())
		require.True(t, res.Annotate)
		require.Len(t, p.questions, 1)
	}
}

func TestResolveInteractiveMaxAttempts(t *testing.T) {
	p := &scriptedPrompter{answers: []Answer{{Query: "x"}, {Query: "y"}, {Query: "z"}, {Query: "gas"}}}
	r := &Resolver{Mode: ModeInteractive, Prompter: p, MaxAttempts: 3}
	res, err := r.Resolve(context.Background(), KindPayee, "Bean Bar", shops)
	require.NoError(t, err)
	require.False(t, res.Resolved())
	require.True(t, res.Annotate)
	require.Len(t, p.questions, 3)
}

func TestResolveInteractivePrompterError(t *testing.T) {
	boom := errors.New("tty closed")
	r := &Resolver{Mode: ModeInteractive, Prompter: &scriptedPrompter{err: boom}}
	_, err := r.Resolve(context.Background(), KindPayee, "Bean Bar", shops)
	require.ErrorIs(t, err, boom)
}

func TestResolveInteractiveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &scriptedPrompter{}
	r := &Resolver{Mode: ModeInteractive, Prompter: p}
	_, err := r.Resolve(ctx, KindPayee, "Bean Bar", shops)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, p.questions)
}

func TestParseMode(t *testing.T) {
	m, ok := ParseMode("Batch")
	require.True(t, ok)
	require.Equal(t, ModeBatch, m)

	m, ok = ParseMode("")
	require.True(t, ok)
	require.Equal(t, ModeInteractive, m)

	_, ok = ParseMode("auto")
	require.False(t, ok)
}
