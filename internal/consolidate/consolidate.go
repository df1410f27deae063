// consolidate.go - Wallet-side note consolidation planning.
//
// A wallet holding many small notes cannot spend them in one transaction; the
// circuit takes two inputs. Consolidation merges notes pairwise off the hot
// path until the remainder fits one spend. This package only plans: it picks
// pairs and orders merges, and the wallet proves each merge as an ordinary
// two-in-one-out transaction.

package consolidate

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Pauli-Group/Hegemon-sub003/internal/sponge"
)

// MergeArity is the number of notes one merge transaction consumes.
const MergeArity = 2

// DefaultTarget is the note count a single transaction can spend directly.
const DefaultTarget = 2

// ErrTarget reports a target below one.
var ErrTarget = errors.New("consolidate: target must be at least 1")

// SpentQuery answers whether a nullifier is already on the ledger. The
// wallet's chain view implements it.
type SpentQuery interface {
	Spent(nf sponge.Digest) bool
}

// Candidate is one wallet note eligible for consolidation.
type Candidate struct {
	ID        int
	Value     uint64
	Nullifier sponge.Digest
}

// Merge is one planned two-in-one-out transaction. Left and Right name the
// consumed notes; Result names the merged note for later rounds. Merges in
// the same round touch disjoint notes and may prove in parallel.
type Merge struct {
	Left   int
	Right  int
	Result int
	Value  uint64
	Round  int
}

// Plan is an ordered merge schedule.
type Plan struct {
	Merges     []Merge
	FinalCount int
	FinalValue uint64
}

// Estimate returns the merge-transaction count to bring n notes down to
// target without building a plan.
func Estimate(n, target int) int {
	if target < 1 || n <= target {
		return 0
	}
	return n - target
}

// FilterUnspent drops candidates whose nullifiers are already on the ledger.
func FilterUnspent(candidates []Candidate, q SpentQuery) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !q.Spent(c.Nullifier) {
			out = append(out, c)
		}
	}
	return out
}

// Greedy merges the two smallest notes first. Small notes disappear early, so
// an interrupted schedule still leaves the wallet with fewer, larger notes.
func Greedy(candidates []Candidate, target int) (*Plan, error) {
	if target < 1 {
		return nil, ErrTarget
	}
	working := append([]Candidate(nil), candidates...)
	sort.Slice(working, func(i, j int) bool { return working[i].Value < working[j].Value })

	nextID := maxID(candidates) + 1
	plan := &Plan{}
	round := 0
	for len(working) > target {
		left, right := working[0], working[1]
		merged := Candidate{ID: nextID, Value: left.Value + right.Value}
		nextID++
		plan.Merges = append(plan.Merges, Merge{
			Left:   left.ID,
			Right:  right.ID,
			Result: merged.ID,
			Value:  merged.Value,
			Round:  round,
		})
		round++
		working = working[2:]
		// Insert keeping the value order.
		at := sort.Search(len(working), func(i int) bool { return working[i].Value >= merged.Value })
		working = append(working, Candidate{})
		copy(working[at+1:], working[at:])
		working[at] = merged
	}
	finishPlan(plan, working)
	return plan, nil
}

// Balanced pairs notes level by level like a binary tree. Every merge in a
// round is independent, which suits proving them concurrently; the trade-off
// is that all original notes stay spendable until their own round runs.
func Balanced(candidates []Candidate, target int) (*Plan, error) {
	if target < 1 {
		return nil, ErrTarget
	}
	working := append([]Candidate(nil), candidates...)
	nextID := maxID(candidates) + 1
	plan := &Plan{}
	round := 0
	for len(working) > target {
		merges := len(working) / 2
		if over := len(working) - target; merges > over {
			merges = over
		}
		next := make([]Candidate, 0, len(working)-merges)
		for k := 0; k < merges; k++ {
			left, right := working[2*k], working[2*k+1]
			merged := Candidate{ID: nextID, Value: left.Value + right.Value}
			nextID++
			plan.Merges = append(plan.Merges, Merge{
				Left:   left.ID,
				Right:  right.ID,
				Result: merged.ID,
				Value:  merged.Value,
				Round:  round,
			})
			next = append(next, merged)
		}
		next = append(next, working[2*merges:]...)
		working = next
		round++
	}
	finishPlan(plan, working)
	return plan, nil
}

func finishPlan(plan *Plan, working []Candidate) {
	plan.FinalCount = len(working)
	for _, c := range working {
		plan.FinalValue += c.Value
	}
}

func maxID(candidates []Candidate) int {
	max := 0
	for _, c := range candidates {
		if c.ID > max {
			max = c.ID
		}
	}
	return max
}

// Validate checks a plan's internal consistency: every consumed note exists
// and is consumed once, values carry through, rounds are monotonic.
func (p *Plan) Validate(candidates []Candidate) error {
	values := make(map[int]uint64, len(candidates))
	for _, c := range candidates {
		values[c.ID] = c.Value
	}
	consumed := make(map[int]bool)
	lastRound := -1
	for i, m := range p.Merges {
		if m.Round < lastRound {
			return fmt.Errorf("consolidate: merge %d: round regressed", i)
		}
		lastRound = m.Round
		for _, id := range []int{m.Left, m.Right} {
			v, ok := values[id]
			if !ok {
				return fmt.Errorf("consolidate: merge %d: unknown note %d", i, id)
			}
			if consumed[id] {
				return fmt.Errorf("consolidate: merge %d: note %d consumed twice", i, id)
			}
			consumed[id] = true
			_ = v
		}
		if values[m.Left]+values[m.Right] != m.Value {
			return fmt.Errorf("consolidate: merge %d: value mismatch", i)
		}
		values[m.Result] = m.Value
	}
	return nil
}
