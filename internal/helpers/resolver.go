// Package helpers orders named auxiliary expressions so that each one can be
// evaluated before any expression that uses it.
package helpers

import (
	"fmt"
	"strings"

	"github.com/san-kum/ddesim/internal/dde"
)

// Expression is the part of a helper's expression tree the resolver needs:
// whether it references a given symbol anywhere.
type Expression interface {
	References(symbol string) bool
}

// Helper is a named subexpression shared across a system's equations.
type Helper struct {
	Symbol string
	Expr   Expression
}

// Refs is an Expression given directly as the list of symbols it references.
type Refs []string

func (r Refs) References(symbol string) bool {
	for _, s := range r {
		if s == symbol {
			return true
		}
	}
	return false
}

// CycleError names the helpers that could not be ordered.
type CycleError struct {
	Symbols []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", dde.ErrCyclicHelpers.Error(), strings.Join(e.Symbols, ", "))
}

func (e *CycleError) Unwrap() error {
	return dde.ErrCyclicHelpers
}

// Sort returns the helpers in an evaluation order: no helper references a
// helper placed after it. Among the helpers ready at each point the one listed
// first in the input wins, so an already valid order is returned unchanged.
// A helper referencing itself counts as a cycle. The input is not modified.
func Sort(hs []Helper) ([]Helper, error) {
	n := len(hs)
	index := make(map[string]int, n)
	for i, h := range hs {
		if _, dup := index[h.Symbol]; dup {
			return nil, fmt.Errorf("%w: duplicate helper symbol %q", dde.ErrConfiguration, h.Symbol)
		}
		index[h.Symbol] = i
	}

	// pending[i] counts unresolved helpers that i references; dependents[j]
	// lists the helpers referencing j.
	pending := make([]int, n)
	dependents := make([][]int, n)
	for i, h := range hs {
		if h.Expr == nil {
			continue
		}
		for j, other := range hs {
			if h.Expr.References(other.Symbol) {
				pending[i]++
				dependents[j] = append(dependents[j], i)
			}
		}
	}

	done := make([]bool, n)
	ordered := make([]Helper, 0, n)
	for len(ordered) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && pending[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, &CycleError{Symbols: unresolved(hs, done)}
		}

		done[next] = true
		ordered = append(ordered, hs[next])
		for _, d := range dependents[next] {
			pending[d]--
		}
	}

	return ordered, nil
}

func unresolved(hs []Helper, done []bool) []string {
	var symbols []string
	for i, h := range hs {
		if !done[i] {
			symbols = append(symbols, h.Symbol)
		}
	}
	return symbols
}
