package models

// Record lifecycle states. A record only exists once submission or
// processing wrote it; the pipeline exclusively writes COMPLETED.
const (
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
)

// SentimentNotApplicable marks records whose text was never analyzed.
const SentimentNotApplicable = "N/A"

// PostContent is the untrusted shape of a queued submission. All
// fields are optional; a post with neither text nor media still yields
// a neutral, unenriched result.
type PostContent struct {
	PostID    string   `json:"postId,omitempty"`
	Text      string   `json:"text,omitempty"`
	MediaURLs []string `json:"mediaUrls,omitempty"`
}

// AnalysisResult is the canonical record persisted per post, keyed by
// PostID. The inclusivity/misinformation/divisiveness dimensions are
// reserved and always zero.
type AnalysisResult struct {
	PostID              string   `json:"postId"`
	Sentiment           string   `json:"sentiment"`
	KeyPhrases          []string `json:"keyPhrases"`
	InclusivityScore    float64  `json:"inclusivityScore"`
	MisinformationScore float64  `json:"misinformationScore"`
	DivisivenessScore   float64  `json:"divisivenessScore"`
	SocialImpactScore   int      `json:"socialImpactScore"`
	EthicalInsights     []string `json:"ethicalInsights"`
	Timestamp           string   `json:"timestamp"`
	Status              string   `json:"status"`
}

// ModerationLabel is one content-moderation finding for an image.
type ModerationLabel struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}
