package domain

import "time"

// Heuristic constants. These are designer-chosen values, not statistically
// estimated; the engine config can override the thresholds per deployment.
const (
	// Fixed per-rule confidence levels: exact numeric matches are trusted
	// more than softer lexical matches, and the insufficient-information
	// fallback carries no confidence at all.
	ConfidenceNumericMatch = 0.9
	ConfidenceLexicalMatch = 0.8
	ConfidenceUnknown      = 0.0

	// Explanation caps for every decision.
	MaxReasons       = 4
	MaxUncertainties = 3

	// Coarse band-to-score mapping for the enhanced path.
	ScoreHigh   = 15.0
	ScoreMedium = 10.0
	ScoreLow    = 5.0

	// Pattern-mining triggers.
	GeneticRequirementCutoff    = 0.30
	EarlyPhaseInsightThreshold  = 0.70
	IndustrySponsorThreshold    = 0.60
	GeoConcentrationThreshold   = 0.50
	InsightConfidenceEarlyPhase = 0.85
	InsightConfidenceIndustry   = 0.80
	InsightConfidenceGeography  = 0.75
	PatternConfidence           = 0.70

	// Corpus assembly defaults. The inter-batch delay is a politeness
	// throttle against the registry, not a correctness requirement.
	DefaultBatchSize  = 50
	DefaultCorpusSize = 200
	DefaultBatchDelay = 250 * time.Millisecond

	// Corpus sizes at or above this get the higher aggregate confidence.
	LargeCorpusThreshold       = 25
	CorpusConfidenceLarge      = 0.80
	CorpusConfidenceSmall      = 0.60
	MaxEvidenceTrialReferences = 5
)

// GenericUncertainty is emitted when a decision would otherwise carry no
// explanation at all.
const GenericUncertainty = "Limited eligibility information available for this trial"
