package helpers

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/san-kum/ddesim/internal/dde"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func symbols(hs []Helper) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = h.Symbol
	}
	return out
}

// assertValidOrder checks every helper is placed after all helpers it references.
func assertValidOrder(t *testing.T, ordered []Helper) {
	t.Helper()
	pos := make(map[string]int, len(ordered))
	for i, h := range ordered {
		pos[h.Symbol] = i
	}
	for i, h := range ordered {
		for sym, j := range pos {
			if h.Expr != nil && h.Expr.References(sym) {
				assert.Lessf(t, j, i, "%s references %s placed after it", h.Symbol, sym)
			}
		}
	}
}

func TestSort(t *testing.T) {
	tests := []struct {
		name     string
		input    []Helper
		expected []string
	}{
		{"empty", nil, []string{}},
		{"single", []Helper{{"a", Refs{"x"}}}, []string{"a"}},
		{
			"already ordered",
			[]Helper{{"a", Refs{}}, {"b", Refs{"a"}}, {"c", Refs{"b", "a"}}},
			[]string{"a", "b", "c"},
		},
		{
			"reversed chain",
			[]Helper{{"c", Refs{"b"}}, {"b", Refs{"a"}}, {"a", Refs{"y"}}},
			[]string{"a", "b", "c"},
		},
		{
			"independent keep input order",
			[]Helper{{"q", nil}, {"p", Refs{"t"}}, {"r", Refs{}}},
			[]string{"q", "p", "r"},
		},
		{
			"diamond",
			[]Helper{{"d", Refs{"b", "c"}}, {"c", Refs{"a"}}, {"b", Refs{"a"}}, {"a", nil}},
			[]string{"a", "c", "b", "d"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ordered, err := Sort(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, symbols(ordered))
			assertValidOrder(t, ordered)
		})
	}
}

func TestSort_DoesNotModifyInput(t *testing.T) {
	input := []Helper{{"b", Refs{"a"}}, {"a", nil}}
	_, err := Sort(input)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, symbols(input))
}

func TestSort_Cycles(t *testing.T) {
	tests := []struct {
		name       string
		input      []Helper
		unresolved []string
	}{
		{"self reference", []Helper{{"a", Refs{"a"}}}, []string{"a"}},
		{"two cycle", []Helper{{"a", Refs{"b"}}, {"b", Refs{"a"}}}, []string{"a", "b"}},
		{
			"cycle behind resolvable helper",
			[]Helper{{"x", nil}, {"a", Refs{"c", "x"}}, {"b", Refs{"a"}}, {"c", Refs{"b"}}},
			[]string{"a", "b", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ordered, err := Sort(tt.input)
			assert.Nil(t, ordered)
			require.Error(t, err)
			assert.True(t, errors.Is(err, dde.ErrCyclicHelpers))

			var cycle *CycleError
			require.True(t, errors.As(err, &cycle))
			assert.Equal(t, tt.unresolved, cycle.Symbols)
		})
	}
}

func TestSort_DuplicateSymbol(t *testing.T) {
	_, err := Sort([]Helper{{"a", nil}, {"a", Refs{"x"}}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, dde.ErrConfiguration))
}

func TestSort_RandomAcyclicPermutations(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	names := []string{"h0", "h1", "h2", "h3", "h4", "h5", "h6", "h7", "h8", "h9"}

	for trial := 0; trial < 50; trial++ {
		// helper i may only reference helpers with a smaller index, so the set is acyclic
		hs := make([]Helper, len(names))
		for i, name := range names {
			var refs Refs
			for j := 0; j < i; j++ {
				if rng.Float64() < 0.3 {
					refs = append(refs, names[j])
				}
			}
			hs[i] = Helper{Symbol: name, Expr: refs}
		}
		rng.Shuffle(len(hs), func(i, j int) { hs[i], hs[j] = hs[j], hs[i] })

		ordered, err := Sort(hs)
		require.NoError(t, err)
		assert.ElementsMatch(t, names, symbols(ordered))
		assertValidOrder(t, ordered)
	}
}
