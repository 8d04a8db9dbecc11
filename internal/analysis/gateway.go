// Package analysis fronts the managed text and image classifiers
// behind one gateway. Clients are built once and shared by every
// in-flight message; both are safe for concurrent use.
package analysis

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/comprehend"
	comprehendtypes "github.com/aws/aws-sdk-go-v2/service/comprehend/types"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	rekognitiontypes "github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/impactlens/social-pulse/internal/models"
)

// Labels below this confidence are dropped by the moderation service
// itself; there is no local filtering.
const minModerationConfidence = 75

// TextAnalysis is the combined output of sentiment and key-phrase
// detection for one post's text.
type TextAnalysis struct {
	Sentiment  string
	KeyPhrases []string
}

// ImageAnalysis holds the moderation findings for one media object.
type ImageAnalysis struct {
	ModerationLabels []models.ModerationLabel
}

// Gateway calls the managed classifiers. Failures propagate to the
// caller untouched; retry is the queue's job, not ours.
type Gateway struct {
	comprehend  *comprehend.Client
	rekognition *rekognition.Client
	mediaBucket string
}

// NewGateway loads the shared AWS configuration and constructs both
// classifier clients. mediaBucket may be empty; it is only needed to
// resolve media locators without an explicit scheme.
func NewGateway(ctx context.Context, region, mediaBucket string) (*Gateway, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Gateway{
		comprehend:  comprehend.NewFromConfig(cfg),
		rekognition: rekognition.NewFromConfig(cfg),
		mediaBucket: mediaBucket,
	}, nil
}

// AnalyzeText runs sentiment and key-phrase detection over text.
// Callers must not pass empty text.
func (g *Gateway) AnalyzeText(ctx context.Context, text string) (TextAnalysis, error) {
	sentiment, err := g.comprehend.DetectSentiment(ctx, &comprehend.DetectSentimentInput{
		Text:         aws.String(text),
		LanguageCode: comprehendtypes.LanguageCodeEn,
	})
	if err != nil {
		return TextAnalysis{}, fmt.Errorf("detect sentiment: %w", err)
	}

	phrases, err := g.comprehend.DetectKeyPhrases(ctx, &comprehend.DetectKeyPhrasesInput{
		Text:         aws.String(text),
		LanguageCode: comprehendtypes.LanguageCodeEn,
	})
	if err != nil {
		return TextAnalysis{}, fmt.Errorf("detect key phrases: %w", err)
	}

	out := TextAnalysis{Sentiment: string(sentiment.Sentiment)}
	for _, phrase := range phrases.KeyPhrases {
		if phrase.Text != nil {
			out.KeyPhrases = append(out.KeyPhrases, *phrase.Text)
		}
	}

	return out, nil
}

// AnalyzeImage runs moderation-label detection against a single stored
// media object, identified by locator (see ResolveLocator).
func (g *Gateway) AnalyzeImage(ctx context.Context, locator string) (ImageAnalysis, error) {
	bucket, key, err := ResolveLocator(locator, g.mediaBucket)
	if err != nil {
		return ImageAnalysis{}, err
	}

	resp, err := g.rekognition.DetectModerationLabels(ctx, &rekognition.DetectModerationLabelsInput{
		Image: &rekognitiontypes.Image{
			S3Object: &rekognitiontypes.S3Object{
				Bucket: aws.String(bucket),
				Name:   aws.String(key),
			},
		},
		MinConfidence: aws.Float32(minModerationConfidence),
	})
	if err != nil {
		return ImageAnalysis{}, fmt.Errorf("detect moderation labels: %w", err)
	}

	out := ImageAnalysis{}
	for _, label := range resp.ModerationLabels {
		if label.Name == nil {
			continue
		}
		moderation := models.ModerationLabel{Name: *label.Name}
		if label.Confidence != nil {
			moderation.Confidence = float64(*label.Confidence)
		}
		out.ModerationLabels = append(out.ModerationLabels, moderation)
	}

	return out, nil
}
