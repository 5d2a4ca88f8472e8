package domain

import "context"

// Article is literature metadata from the search collaborator. It is
// auxiliary context only; every consumer must function with zero articles.
type Article struct {
	PMID    string   `json:"pmid"`
	Title   string   `json:"title"`
	Journal string   `json:"journal,omitempty"`
	Year    int      `json:"year,omitempty"`
	Authors []string `json:"authors,omitempty"`
}

// TrialSearcher is the trial registry collaborator. Implementations return
// a bounded list of trials for a condition with an optional region filter;
// callers must tolerate an empty list and must not assume any ordering.
type TrialSearcher interface {
	Search(ctx context.Context, condition, region string, limit int) ([]Trial, error)
}

// LiteratureSearcher is the biomedical-literature collaborator.
type LiteratureSearcher interface {
	SearchArticles(ctx context.Context, condition string, limit int) ([]Article, error)
}
