package external

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialmatch-engine/internal/domain"
)

type fakeSearcher struct {
	trials []domain.Trial
	err    error
	calls  int
}

func (f *fakeSearcher) Search(ctx context.Context, condition, region string, limit int) ([]domain.Trial, error) {
	f.calls++
	return f.trials, f.err
}

type fakeLiterature struct {
	articles []domain.Article
	err      error
	calls    int
}

func (f *fakeLiterature) SearchArticles(ctx context.Context, condition string, limit int) ([]domain.Article, error) {
	f.calls++
	return f.articles, f.err
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestResilientSearchClient_PassThrough(t *testing.T) {
	registry := &fakeSearcher{trials: []domain.Trial{{NCTID: "NCT001"}}}
	client := NewResilientSearchClient(quietLogger(), registry, &fakeLiterature{}, nil, nil)

	trials, err := client.Search(context.Background(), "als", "", 10)
	require.NoError(t, err)
	require.Len(t, trials, 1)
	assert.Equal(t, "NCT001", trials[0].NCTID)
	assert.Equal(t, 1, registry.calls)
}

func TestResilientSearchClient_RegistryErrorPropagates(t *testing.T) {
	registry := &fakeSearcher{err: errors.New("registry down")}
	client := NewResilientSearchClient(quietLogger(), registry, &fakeLiterature{}, nil, nil)

	_, err := client.Search(context.Background(), "als", "", 10)
	require.Error(t, err)
}

func TestResilientSearchClient_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	registry := &fakeSearcher{err: errors.New("registry down")}
	client := NewResilientSearchClient(quietLogger(), registry, &fakeLiterature{}, nil, nil)

	for i := 0; i < 5; i++ {
		client.Search(context.Background(), "als", "", 10)
	}
	callsBeforeOpen := registry.calls

	// Once open, requests are rejected without touching the registry.
	_, err := client.Search(context.Background(), "als", "", 10)
	require.Error(t, err)
	assert.Equal(t, callsBeforeOpen, registry.calls)
}

func TestResilientSearchClient_LiteratureCacheShortCircuits(t *testing.T) {
	literature := &fakeLiterature{articles: []domain.Article{{PMID: "123"}}}
	litCache := NewLiteratureCache(8, time.Minute)
	client := NewResilientSearchClient(quietLogger(), &fakeSearcher{}, literature, nil, litCache)

	first, err := client.SearchArticles(context.Background(), "sma", 5)
	require.NoError(t, err)
	second, err := client.SearchArticles(context.Background(), "sma", 5)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, literature.calls, "second lookup must be served from cache")
}
