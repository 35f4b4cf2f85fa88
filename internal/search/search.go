// Package search locates every occurrence of a set of byte Patterns within
// a haystack (typically a binary's .text section).
//
// Each pattern is reduced to its longest contiguous run of concrete bytes
// (pattern.Pattern.LongestByteSequence) and that run is fed into a single
// Aho-Corasick automaton, so a haystack the size of an executable's code
// section is scanned once regardless of how many patterns are registered.
// A literal hit is then verified against the pattern's full byte sequence
// (including wildcards and capture groups) before it is reported as a
// Match. Patterns with no concrete bytes at all (pure wildcard) fall back
// to a direct scan, since they have nothing for the automaton to index.
package search

import (
	"sort"

	"github.com/jac3km4/zoltan/internal/pattern"
)

// Match is one occurrence of a pattern in the haystack.
type Match struct {
	PatternIndex int
	RVA          int // offset of the start of the match within the haystack
}

// MultiSearch returns every Match of patterns within haystack, ordered by
// increasing hit-end position, ties broken by pattern index.
func MultiSearch(patterns []*pattern.Pattern, haystack []byte) []Match {
	var builder automatonBuilder
	var bruteForce []int

	for i, p := range patterns {
		run, offset := p.LongestByteSequence()
		if len(run) == 0 {
			bruteForce = append(bruteForce, i)
			continue
		}
		needle := make([]byte, len(run))
		for j, it := range run {
			needle[j] = it.Byte
		}
		builder.addNeedle(needle, needleRef{patternIndex: i, runOffset: offset})
	}

	var matches []Match

	if len(builder.needles) > 0 {
		automaton := builder.build()
		automaton.scan(haystack, func(endPos int, ref needleRef) {
			start := endPos - len(builder.needles[ref.needleID]) + 1 - ref.runOffset
			if start < 0 {
				return
			}
			p := patterns[ref.patternIndex]
			if start+p.Size() > len(haystack) {
				return
			}
			if p.Matches(haystack[start:]) {
				matches = append(matches, Match{PatternIndex: ref.patternIndex, RVA: start})
			}
		})
	}

	for _, idx := range bruteForce {
		p := patterns[idx]
		size := p.Size()
		if size > len(haystack) {
			continue
		}
		for start := 0; start+size <= len(haystack); start++ {
			if p.Matches(haystack[start:]) {
				matches = append(matches, Match{PatternIndex: idx, RVA: start})
			}
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		endI := matches[i].RVA + patterns[matches[i].PatternIndex].Size()
		endJ := matches[j].RVA + patterns[matches[j].PatternIndex].Size()
		if endI != endJ {
			return endI < endJ
		}
		return matches[i].PatternIndex < matches[j].PatternIndex
	})

	return matches
}

// needleRef associates one literal run with the pattern and byte offset it
// was extracted from. A single byte sequence may be shared by more than
// one pattern, so a needle tracks every reference that registered it.
type needleRef struct {
	patternIndex int
	runOffset    int
	needleID     int
}

type automatonBuilder struct {
	needles [][]byte
	refs    [][]needleRef // refs[i] lists every registration of needles[i]
}

func (b *automatonBuilder) addNeedle(needle []byte, ref needleRef) {
	for i, existing := range b.needles {
		if string(existing) == string(needle) {
			ref.needleID = i
			b.refs[i] = append(b.refs[i], ref)
			return
		}
	}
	ref.needleID = len(b.needles)
	b.needles = append(b.needles, needle)
	b.refs = append(b.refs, []needleRef{ref})
}

type acState struct {
	children map[byte]int
	fail     int
	output   []int // indices into needles that end at this state
}

// automaton is a standard Aho-Corasick trie with failure links, built once
// from every registered needle and then reused for the full haystack scan.
type automaton struct {
	states  []acState
	needles [][]byte
	refs    [][]needleRef
}

func (b *automatonBuilder) build() *automaton {
	a := &automaton{
		states:  []acState{{children: make(map[byte]int)}},
		needles: b.needles,
		refs:    b.refs,
	}

	for id, needle := range b.needles {
		cur := 0
		for _, c := range needle {
			next, ok := a.states[cur].children[c]
			if !ok {
				a.states = append(a.states, acState{children: make(map[byte]int)})
				next = len(a.states) - 1
				a.states[cur].children[c] = next
			}
			cur = next
		}
		a.states[cur].output = append(a.states[cur].output, id)
	}

	a.buildFailureLinks()
	return a
}

func (a *automaton) buildFailureLinks() {
	var queue []int
	for c, next := range a.states[0].children {
		a.states[next].fail = 0
		queue = append(queue, next)
		_ = c
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for c, next := range a.states[cur].children {
			queue = append(queue, next)

			fail := a.states[cur].fail
			for {
				if target, ok := a.states[fail].children[c]; ok && target != next {
					a.states[next].fail = target
					break
				}
				if fail == 0 {
					a.states[next].fail = 0
					break
				}
				fail = a.states[fail].fail
			}
			a.states[next].output = append(a.states[next].output, a.states[a.states[next].fail].output...)
		}
	}
}

// scan walks haystack through the automaton, invoking report for every
// (end position, needle reference) pair found. end position is the index
// of the last byte of the matched needle.
func (a *automaton) scan(haystack []byte, report func(endPos int, ref needleRef)) {
	cur := 0
	for i, c := range haystack {
		for {
			if next, ok := a.states[cur].children[c]; ok {
				cur = next
				break
			}
			if cur == 0 {
				break
			}
			cur = a.states[cur].fail
		}
		for _, needleID := range a.states[cur].output {
			for _, ref := range a.refs[needleID] {
				report(i, ref)
			}
		}
	}
}
