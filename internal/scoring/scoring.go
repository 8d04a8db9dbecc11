// Package scoring computes the social-impact score for a post from its
// classification outputs. It is deliberately pure: no I/O, no state.
package scoring

// Sentiment values returned by the text classifier.
const (
	SentimentPositive = "POSITIVE"
	SentimentNegative = "NEGATIVE"
	SentimentNeutral  = "NEUTRAL"
	SentimentMixed    = "MIXED"
)

const (
	baseScore         = 50
	positiveBonus     = 20
	negativePenalty   = 30
	mixedPenalty      = 10
	moderationPenalty = 40

	minScore = 0
	maxScore = 100
)

// Aggregate maps an optional sentiment and the presence of moderation
// labels to a score in [0,100]. An empty or unrecognized sentiment
// contributes nothing. The moderation penalty applies at most once,
// regardless of how many labels were found.
func Aggregate(sentiment string, hasModerationLabels bool) int {
	score := baseScore

	switch sentiment {
	case SentimentPositive:
		score += positiveBonus
	case SentimentNegative:
		score -= negativePenalty
	case SentimentMixed:
		score -= mixedPenalty
	}

	if hasModerationLabels {
		score -= moderationPenalty
	}

	return clamp(score)
}

func clamp(score int) int {
	if score < minScore {
		return minScore
	}
	if score > maxScore {
		return maxScore
	}
	return score
}
