package quantum

import (
	"sort"
	"time"

	"github.com/qrouter/core/provider"
	"github.com/qrouter/core/routing"
)

// Status is a branch's terminal state.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusTimeout   Status = "timeout"
)

// Variation is one candidate (provider, model, strategy) the executor
// runs as an independent branch.
type Variation struct {
	ID       string
	Provider string
	Model    string
	Strategy routing.Strategy
	Messages []provider.Message
	Params   provider.CompletionParams
}

// BranchResult is one branch's outcome, whether it succeeded, failed,
// timed out, or was cancelled. Quality/Cost/LatencyMS feed the best-score
// collapse strategy's scoring function.
type BranchResult struct {
	VariationID string
	Provider    string
	Model       string
	Strategy    routing.Strategy
	Status      Status
	Content     string
	Usage       provider.Usage
	Quality     float64 // derived from finish_reason by qualityFromFinishReason
	Cost        float64
	LatencyMS   float64
	ElapsedMS   int64
	Err         error
}

// score implements spec §4.10's best-score formula: quality - lambda*cost
// - mu*latency.
func (r BranchResult) score(lambda, mu float64) float64 {
	return r.Quality - lambda*r.Cost - mu*(r.LatencyMS/1000.0)
}

// CollapseStrategy names one of the three collapse strategies spec §4.10
// defines.
type CollapseStrategy string

const (
	CollapseFirstSuccess      CollapseStrategy = "first_success"
	CollapseBestScore         CollapseStrategy = "best_score"
	CollapseWeightedConsensus CollapseStrategy = "weighted_consensus"
)

// SimilarityFunc scores how similar two branch payloads are, for
// weighted-consensus voting. Returns a value in [0,1].
type SimilarityFunc func(a, b BranchResult) float64

// Result is execute()'s return shape: the winning branch (if any) plus
// every branch's final record, never an error — failure is represented by
// Success=false per spec §4.10's "never raises".
type Result struct {
	Success  bool
	Winner   *BranchResult
	Branches []BranchResult
	Error    error
}

// collapse picks a winner from a completed (or partially completed) set of
// branch results, pure in the completed branches — no dependency on
// completion order.
func collapse(strategy CollapseStrategy, branches []BranchResult, lambda, mu float64, similarity SimilarityFunc) (*BranchResult, error) {
	switch strategy {
	case CollapseFirstSuccess:
		return collapseFirstSuccess(branches)
	case CollapseWeightedConsensus:
		winner, err := collapseWeightedConsensus(branches, similarity)
		if err == nil {
			return winner, nil
		}
		return collapseBestScore(branches, lambda, mu) // no quorum: fall back
	default:
		return collapseBestScore(branches, lambda, mu)
	}
}

func collapseFirstSuccess(branches []BranchResult) (*BranchResult, error) {
	for i := range branches {
		if branches[i].Status == StatusSucceeded {
			return &branches[i], nil
		}
	}
	return nil, errAllBranchesFailed
}

func collapseBestScore(branches []BranchResult, lambda, mu float64) (*BranchResult, error) {
	candidates := make([]int, 0, len(branches))
	for i, b := range branches {
		if b.Status == StatusSucceeded {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return nil, errAllBranchesFailed
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := branches[candidates[i]], branches[candidates[j]]
		sa, sb := a.score(lambda, mu), b.score(lambda, mu)
		if sa != sb {
			return sa > sb
		}
		if a.LatencyMS != b.LatencyMS {
			return a.LatencyMS < b.LatencyMS
		}
		return a.Model < b.Model
	})
	winner := branches[candidates[0]]
	return &winner, nil
}

func collapseWeightedConsensus(branches []BranchResult, similarity SimilarityFunc) (*BranchResult, error) {
	if similarity == nil {
		return nil, errNoQuorum
	}
	succeeded := make([]BranchResult, 0, len(branches))
	for _, b := range branches {
		if b.Status == StatusSucceeded {
			succeeded = append(succeeded, b)
		}
	}
	if len(succeeded) < 2 {
		return nil, errNoQuorum
	}

	bestIdx := -1
	bestVotes := 0.0
	for i, candidate := range succeeded {
		var votes float64
		for j, other := range succeeded {
			if i == j {
				continue
			}
			votes += similarity(candidate, other)
		}
		if bestIdx == -1 || votes > bestVotes || (votes == bestVotes && candidate.Model < succeeded[bestIdx].Model) {
			bestIdx = i
			bestVotes = votes
		}
	}

	quorum := float64(len(succeeded)-1) * 0.5
	if bestVotes < quorum {
		return nil, errNoQuorum
	}
	winner := succeeded[bestIdx]
	return &winner, nil
}

var (
	errAllBranchesFailed = branchCollapseError("all branches failed")
	errNoQuorum          = branchCollapseError("no weighted-consensus quorum")
)

type branchCollapseError string

func (e branchCollapseError) Error() string { return string(e) }

func elapsedMS(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
