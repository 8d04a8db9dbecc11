// Package pipeline turns one queued post into one persisted analysis
// record: parse, classify, score, build, upsert. It is stateless
// across messages; any failure propagates so the queue layer can
// redeliver and eventually dead-letter the message.
package pipeline

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/impactlens/social-pulse/internal/analysis"
	"github.com/impactlens/social-pulse/internal/models"
	"github.com/impactlens/social-pulse/internal/scoring"
)

// TextAnalyzer classifies a post's text. Implemented by the
// classification gateway; stubbed in tests.
type TextAnalyzer interface {
	AnalyzeText(ctx context.Context, text string) (analysis.TextAnalysis, error)
}

// ImageAnalyzer moderates a single stored media object.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, locator string) (analysis.ImageAnalysis, error)
}

// ResultWriter upserts one record by post id.
type ResultWriter interface {
	PutResult(ctx context.Context, result models.AnalysisResult) error
}

// Processor wires the gateway and store into the per-message pipeline.
type Processor struct {
	Text  TextAnalyzer
	Image ImageAnalyzer
	Store ResultWriter
	Now   func() time.Time
}

// Process handles one raw message body end to end and returns the
// persisted record. Text and image analysis run concurrently; either
// failure fails the message before anything is written.
func (p *Processor) Process(ctx context.Context, body []byte) (models.AnalysisResult, error) {
	var post models.PostContent
	if err := json.Unmarshal(body, &post); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("parse post content: %w", err)
	}

	var (
		text  *analysis.TextAnalysis
		image *analysis.ImageAnalysis
	)

	g, gctx := errgroup.WithContext(ctx)

	if post.Text != "" {
		g.Go(func() error {
			res, err := p.Text.AnalyzeText(gctx, post.Text)
			if err != nil {
				return err
			}
			text = &res
			return nil
		})
	}

	if len(post.MediaURLs) > 0 {
		// Only the first locator is moderated; the rest ride along.
		locator := post.MediaURLs[0]
		g.Go(func() error {
			res, err := p.Image.AnalyzeImage(gctx, locator)
			if err != nil {
				return err
			}
			image = &res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return models.AnalysisResult{}, err
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}

	result := BuildResult(post, body, text, image, now().UTC())
	if err := p.Store.PutResult(ctx, result); err != nil {
		return models.AnalysisResult{}, err
	}

	return result, nil
}

// BuildResult assembles the persisted record from the raw inputs and
// the classification outputs, applying the defaulting rules for
// analyses that never ran.
func BuildResult(post models.PostContent, body []byte, text *analysis.TextAnalysis, image *analysis.ImageAnalysis, now time.Time) models.AnalysisResult {
	result := models.AnalysisResult{
		PostID:          post.PostID,
		Sentiment:       models.SentimentNotApplicable,
		KeyPhrases:      []string{},
		EthicalInsights: []string{},
		Timestamp:       now.Format(time.RFC3339),
		Status:          models.StatusCompleted,
	}

	if result.PostID == "" {
		result.PostID = DeriveID(body)
	}

	hasLabels := false
	sentiment := ""

	if text != nil {
		sentiment = text.Sentiment
		result.Sentiment = text.Sentiment
		if len(text.KeyPhrases) > 0 {
			result.KeyPhrases = text.KeyPhrases
		}
	}

	if image != nil && len(image.ModerationLabels) > 0 {
		hasLabels = true
		for _, label := range image.ModerationLabels {
			result.EthicalInsights = append(result.EthicalInsights, label.Name)
		}
	}

	result.SocialImpactScore = scoring.Aggregate(sentiment, hasLabels)

	return result
}

// DeriveID hashes the raw message body into a stable identifier, so a
// redelivered message that carried no post id upserts the same record
// on every attempt.
func DeriveID(body []byte) string {
	sum := sha1.Sum(body)
	return hex.EncodeToString(sum[:])
}
