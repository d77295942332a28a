package domain

import "sort"

// Tier is the confidence level of a household match
type Tier string

const (
	// TierHigh means the subject and candidate share a guardian identity
	TierHigh Tier = "HIGH"
	// TierMedium means shared billing account and shared address
	TierMedium Tier = "MEDIUM"
	// TierLow means shared billing account only
	TierLow Tier = "LOW"
)

// Rank orders tiers for deduplication; lower rank is stronger evidence
func (t Tier) Rank() int {
	switch t {
	case TierHigh:
		return 1
	case TierMedium:
		return 2
	case TierLow:
		return 3
	default:
		return 4
	}
}

// CandidateMatch links a household candidate to a subject's visit
type CandidateMatch struct {
	SubjectID   string
	CandidateID string
	Tier        Tier
}

// DedupeMatches collapses duplicate (subject, candidate) pairs to the
// strongest tier found and returns the survivors in deterministic
// order: subject, then candidate, then rank.
func DedupeMatches(matches []CandidateMatch) []CandidateMatch {
	type key struct {
		subject   string
		candidate string
	}

	best := make(map[key]CandidateMatch, len(matches))
	for _, m := range matches {
		k := key{subject: m.SubjectID, candidate: m.CandidateID}
		if existing, ok := best[k]; !ok || m.Tier.Rank() < existing.Tier.Rank() {
			best[k] = m
		}
	}

	out := make([]CandidateMatch, 0, len(best))
	for _, m := range best {
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].SubjectID != out[j].SubjectID {
			return out[i].SubjectID < out[j].SubjectID
		}
		if out[i].CandidateID != out[j].CandidateID {
			return out[i].CandidateID < out[j].CandidateID
		}
		return out[i].Tier.Rank() < out[j].Tier.Rank()
	})

	return out
}
