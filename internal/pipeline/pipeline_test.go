package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/impactlens/social-pulse/internal/analysis"
	"github.com/impactlens/social-pulse/internal/models"
	"github.com/impactlens/social-pulse/internal/pipeline"
)

type stubText struct {
	calls  int
	result analysis.TextAnalysis
	err    error
}

func (s *stubText) AnalyzeText(_ context.Context, _ string) (analysis.TextAnalysis, error) {
	s.calls++
	return s.result, s.err
}

type stubImage struct {
	calls    int
	locators []string
	result   analysis.ImageAnalysis
	err      error
}

func (s *stubImage) AnalyzeImage(_ context.Context, locator string) (analysis.ImageAnalysis, error) {
	s.calls++
	s.locators = append(s.locators, locator)
	return s.result, s.err
}

type stubStore struct {
	results []models.AnalysisResult
	err     error
}

func (s *stubStore) PutResult(_ context.Context, result models.AnalysisResult) error {
	if s.err != nil {
		return s.err
	}
	s.results = append(s.results, result)
	return nil
}

func fixedNow() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newProcessor(text *stubText, image *stubImage, store *stubStore) *pipeline.Processor {
	return &pipeline.Processor{Text: text, Image: image, Store: store, Now: fixedNow}
}

func marshal(t *testing.T, post models.PostContent) []byte {
	t.Helper()
	data, err := json.Marshal(post)
	require.NoError(t, err)
	return data
}

func TestProcessTextOnlySkipsImageAnalysis(t *testing.T) {
	text := &stubText{result: analysis.TextAnalysis{
		Sentiment:  "POSITIVE",
		KeyPhrases: []string{"community garden"},
	}}
	image := &stubImage{}
	store := &stubStore{}

	body := marshal(t, models.PostContent{PostID: "post-1", Text: "we built a community garden"})

	result, err := newProcessor(text, image, store).Process(context.Background(), body)
	require.NoError(t, err)

	require.Equal(t, 1, text.calls)
	require.Equal(t, 0, image.calls)

	require.Equal(t, "post-1", result.PostID)
	require.Equal(t, "POSITIVE", result.Sentiment)
	require.Equal(t, []string{"community garden"}, result.KeyPhrases)
	require.Equal(t, 70, result.SocialImpactScore)
	require.Empty(t, result.EthicalInsights)
	require.Equal(t, models.StatusCompleted, result.Status)
	require.Equal(t, "2024-06-01T12:00:00Z", result.Timestamp)

	require.Len(t, store.results, 1)
	require.Equal(t, result, store.results[0])
}

func TestProcessMediaOnlySkipsTextAnalysis(t *testing.T) {
	text := &stubText{}
	image := &stubImage{result: analysis.ImageAnalysis{
		ModerationLabels: []models.ModerationLabel{{Name: "Violence", Confidence: 92}},
	}}
	store := &stubStore{}

	body := marshal(t, models.PostContent{
		PostID:    "post-2",
		MediaURLs: []string{"s3://media/first.jpg", "s3://media/second.jpg"},
	})

	result, err := newProcessor(text, image, store).Process(context.Background(), body)
	require.NoError(t, err)

	require.Equal(t, 0, text.calls)
	require.Equal(t, 1, image.calls)
	require.Equal(t, []string{"s3://media/first.jpg"}, image.locators)

	require.Equal(t, models.SentimentNotApplicable, result.Sentiment)
	require.Empty(t, result.KeyPhrases)
	require.Equal(t, []string{"Violence"}, result.EthicalInsights)
	require.Equal(t, 10, result.SocialImpactScore)
}

func TestProcessEmptyPostStillWritesNeutralRecord(t *testing.T) {
	text := &stubText{}
	image := &stubImage{}
	store := &stubStore{}

	body := marshal(t, models.PostContent{PostID: "post-3"})

	result, err := newProcessor(text, image, store).Process(context.Background(), body)
	require.NoError(t, err)

	require.Equal(t, 0, text.calls)
	require.Equal(t, 0, image.calls)
	require.Equal(t, 50, result.SocialImpactScore)
	require.Equal(t, models.SentimentNotApplicable, result.Sentiment)
	require.Equal(t, []string{}, result.KeyPhrases)
	require.Equal(t, []string{}, result.EthicalInsights)
	require.Zero(t, result.InclusivityScore)
	require.Zero(t, result.MisinformationScore)
	require.Zero(t, result.DivisivenessScore)
	require.Len(t, store.results, 1)
}

func TestProcessDerivesStableIDWhenMissing(t *testing.T) {
	text := &stubText{result: analysis.TextAnalysis{Sentiment: "NEUTRAL"}}
	store := &stubStore{}

	body := marshal(t, models.PostContent{Text: "anonymous post"})

	proc := newProcessor(text, &stubImage{}, store)

	first, err := proc.Process(context.Background(), body)
	require.NoError(t, err)

	second, err := proc.Process(context.Background(), body)
	require.NoError(t, err)

	require.NotEmpty(t, first.PostID)
	require.Equal(t, first.PostID, second.PostID)
	require.Len(t, store.results, 2)
	require.Equal(t, store.results[0].PostID, store.results[1].PostID)
}

func TestProcessMalformedBodyFails(t *testing.T) {
	store := &stubStore{}

	_, err := newProcessor(&stubText{}, &stubImage{}, store).Process(context.Background(), []byte("{not json"))
	require.Error(t, err)
	require.Empty(t, store.results)
}

func TestProcessClassifierFailurePersistsNothing(t *testing.T) {
	text := &stubText{err: errors.New("throttled")}
	store := &stubStore{}

	body := marshal(t, models.PostContent{PostID: "post-4", Text: "hello"})

	_, err := newProcessor(text, &stubImage{}, store).Process(context.Background(), body)
	require.Error(t, err)
	require.Empty(t, store.results)
}

func TestProcessStoreFailurePropagates(t *testing.T) {
	store := &stubStore{err: errors.New("store down")}

	body := marshal(t, models.PostContent{PostID: "post-5"})

	_, err := newProcessor(&stubText{}, &stubImage{}, store).Process(context.Background(), body)
	require.Error(t, err)
}

func TestBuildResultModerationPenaltyAppliesOnce(t *testing.T) {
	image := &analysis.ImageAnalysis{ModerationLabels: []models.ModerationLabel{
		{Name: "Violence"},
		{Name: "Weapons"},
		{Name: "Gore"},
	}}

	result := pipeline.BuildResult(models.PostContent{PostID: "p"}, nil, nil, image, fixedNow())
	require.Equal(t, 10, result.SocialImpactScore)
	require.Equal(t, []string{"Violence", "Weapons", "Gore"}, result.EthicalInsights)
}
