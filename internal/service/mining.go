package service

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/trialmatch-engine/internal/domain"
)

// PatternMiner turns a condition name into corpus-level statistical
// insight. It is the one component with I/O: a bounded, paced sequence of
// registry fetches. Any single batch failure degrades the corpus instead of
// aborting the mining run.
type PatternMiner struct {
	logger     *logrus.Logger
	searcher   domain.TrialSearcher
	literature domain.LiteratureSearcher
	cfg        domain.EngineConfig

	// sleep is swappable so tests can observe pacing without waiting.
	sleep func(time.Duration)
}

// NewPatternMiner creates a miner. The literature searcher may be nil; the
// miner functions fully without auxiliary articles. Zero config fields fall
// back to the documented defaults.
func NewPatternMiner(logger *logrus.Logger, searcher domain.TrialSearcher, literature domain.LiteratureSearcher, cfg domain.EngineConfig) *PatternMiner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = domain.DefaultBatchSize
	}
	if cfg.CorpusSize <= 0 {
		cfg.CorpusSize = domain.DefaultCorpusSize
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = domain.DefaultBatchDelay
	}
	if cfg.GeneticCutoff <= 0 {
		cfg.GeneticCutoff = domain.GeneticRequirementCutoff
	}
	if cfg.EarlyPhaseThreshold <= 0 {
		cfg.EarlyPhaseThreshold = domain.EarlyPhaseInsightThreshold
	}
	if cfg.IndustryThreshold <= 0 {
		cfg.IndustryThreshold = domain.IndustrySponsorThreshold
	}
	if cfg.GeoThreshold <= 0 {
		cfg.GeoThreshold = domain.GeoConcentrationThreshold
	}

	return &PatternMiner{
		logger:     logger,
		searcher:   searcher,
		literature: literature,
		cfg:        cfg,
		sleep:      time.Sleep,
	}
}

// Mine assembles a deduplicated trial corpus for the condition and computes
// aggregate patterns and insights. An empty corpus yields well-formed,
// empty outputs rather than an error.
func (m *PatternMiner) Mine(ctx context.Context, condition string) (*domain.MiningResult, error) {
	terms := searchTermVariants(condition)

	m.logger.WithFields(logrus.Fields{
		"condition": condition,
		"terms":     terms,
	}).Info("Starting pattern mining")

	corpus := m.assembleCorpus(ctx, terms)

	result := &domain.MiningResult{
		Condition:           condition,
		EligibilityPatterns: m.eligibilityPatterns(condition, corpus),
		ResearchInsights:    m.researchInsights(corpus),
		Patterns:            m.distributionPatterns(corpus),
	}

	if m.literature != nil {
		articles, err := m.literature.SearchArticles(ctx, condition, 10)
		if err != nil {
			m.logger.WithError(err).WithField("condition", condition).Warn("Literature lookup failed, continuing without articles")
		} else {
			result.Articles = articles
		}
	}

	m.logger.WithFields(logrus.Fields{
		"condition": condition,
		"trials":    len(corpus),
		"insights":  len(result.ResearchInsights),
		"patterns":  len(result.Patterns),
	}).Info("Completed pattern mining")

	return result, nil
}

// Search-term variants

var conditionSynonyms = map[string][]string{
	"als": {"amyotrophic lateral sclerosis"},
	"sma": {"spinal muscular atrophy"},
	"dmd": {"duchenne muscular dystrophy"},
	"cf":  {"cystic fibrosis"},
	"nf1": {"neurofibromatosis type 1"},
}

var typeSuffixRe = regexp.MustCompile(`(?i)\s+type\s+[0-9ivx]+$`)

// searchTermVariants generates a small, ordered, deduplicated set of search
// terms for the condition: the name itself, fixed synonyms,
// disease/disorder/syndrome substitutions, and a "type X" suffix strip.
func searchTermVariants(condition string) []string {
	base := strings.ToLower(strings.TrimSpace(condition))
	if base == "" {
		return nil
	}

	seen := map[string]bool{}
	var terms []string
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		terms = append(terms, t)
	}

	add(base)
	for _, syn := range conditionSynonyms[base] {
		add(syn)
	}

	substitutions := [][2]string{
		{"disease", "disorder"},
		{"disease", "syndrome"},
		{"disorder", "disease"},
		{"disorder", "syndrome"},
		{"syndrome", "disease"},
		{"syndrome", "disorder"},
	}
	for _, sub := range substitutions {
		if strings.Contains(base, sub[0]) {
			add(strings.ReplaceAll(base, sub[0], sub[1]))
		}
	}

	if stripped := typeSuffixRe.ReplaceAllString(base, ""); stripped != base {
		add(stripped)
	}

	const maxTerms = 6
	if len(terms) > maxTerms {
		terms = terms[:maxTerms]
	}
	return terms
}

// assembleCorpus fetches one bounded batch per search term, pausing between
// batches as a politeness throttle against the registry, deduplicating by
// NCT id in first-seen order, and truncating to the configured corpus size.
func (m *PatternMiner) assembleCorpus(ctx context.Context, terms []string) []domain.Trial {
	seen := map[string]bool{}
	var corpus []domain.Trial

	for i, term := range terms {
		if i > 0 {
			m.sleep(m.cfg.BatchDelay)
		}
		if ctx.Err() != nil {
			m.logger.WithField("term", term).Warn("Corpus assembly interrupted by caller")
			break
		}

		batch, err := m.searcher.Search(ctx, term, "", m.cfg.BatchSize)
		if err != nil {
			// Partial-corpus degradation is the designed failure mode.
			m.logger.WithError(err).WithField("term", term).Warn("Trial batch fetch failed, continuing with remaining terms")
			continue
		}

		for _, t := range batch {
			if t.NCTID == "" || seen[t.NCTID] {
				continue
			}
			seen[t.NCTID] = true
			corpus = append(corpus, t)
			if len(corpus) >= m.cfg.CorpusSize {
				return corpus
			}
		}
	}

	return corpus
}

// Aggregate analyses

func (m *PatternMiner) eligibilityPatterns(condition string, corpus []domain.Trial) domain.EligibilityPatterns {
	ep := domain.EligibilityPatterns{
		Condition:   condition,
		TotalTrials: len(corpus),
	}
	if len(corpus) == 0 {
		return ep
	}

	ep.Age = analyzeAgePattern(corpus)
	ep.Genetic = m.analyzeGeneticPattern(corpus)

	if len(corpus) >= domain.LargeCorpusThreshold {
		ep.Confidence = domain.CorpusConfidenceLarge
	} else {
		ep.Confidence = domain.CorpusConfidenceSmall
	}

	for i := 0; i < len(corpus) && i < domain.MaxEvidenceTrialReferences; i++ {
		ep.Evidence = append(ep.Evidence, corpus[i].NCTID)
	}

	if ep.Genetic != nil && ep.Genetic.UsuallyRequired {
		ep.Recommendation = "Genetic confirmation is usually required for this condition; obtain molecular testing before screening"
	}

	return ep
}

// analyzeAgePattern reports the corpus-wide minimum of minimums, maximum of
// maximums, and the most common range as the rounded mean of (min, max)
// pairs. Trials with unparsable bounds contribute nothing here but remain
// in the corpus.
func analyzeAgePattern(corpus []domain.Trial) *domain.AgePattern {
	var (
		minAge, maxAge   int
		minSet, maxSet   bool
		loSum, hiSum     int
		pairs, sampleSet int
	)

	for _, t := range corpus {
		contributed := false
		if t.MinAgeYears != nil {
			if !minSet || *t.MinAgeYears < minAge {
				minAge = *t.MinAgeYears
				minSet = true
			}
			contributed = true
		}
		if t.MaxAgeYears != nil {
			if !maxSet || *t.MaxAgeYears > maxAge {
				maxAge = *t.MaxAgeYears
				maxSet = true
			}
			contributed = true
		}
		if t.MinAgeYears != nil && t.MaxAgeYears != nil {
			loSum += *t.MinAgeYears
			hiSum += *t.MaxAgeYears
			pairs++
		}
		if contributed {
			sampleSet++
		}
	}

	if sampleSet == 0 {
		return nil
	}

	ap := &domain.AgePattern{SampleSize: sampleSet}
	if minSet {
		ap.MinAge = minAge
	}
	if maxSet {
		ap.MaxAge = maxAge
	}
	if pairs > 0 {
		ap.MostCommonRange = [2]int{
			int(math.Round(float64(loSum) / float64(pairs))),
			int(math.Round(float64(hiSum) / float64(pairs))),
		}
	}
	return ap
}

// geneticLexicon is the fixed term list used for corpus-level counting. It
// is distinct from both the legacy keyword list and the catalog patterns.
var geneticLexicon = []string{
	"genetic", "mutation", "molecular", "variant", "genotype", "genomic", "dna sequencing", "chromosomal",
}

var mutationTokenRe = regexp.MustCompile(`\b[A-Z]\d{1,4}[A-Z]\b`)

func (m *PatternMiner) analyzeGeneticPattern(corpus []domain.Trial) *domain.GeneticPattern {
	requiring := 0
	seenMutations := map[string]bool{}
	var mutations []string

	for _, t := range corpus {
		text := strings.ToLower(t.EligibilityText)
		if containsAny(text, geneticLexicon) {
			requiring++
		}
		for _, token := range mutationTokenRe.FindAllString(t.EligibilityText, -1) {
			if !seenMutations[token] {
				seenMutations[token] = true
				mutations = append(mutations, token)
			}
		}
	}

	fraction := float64(requiring) / float64(len(corpus))
	return &domain.GeneticPattern{
		TrialsRequiring: requiring,
		Fraction:        fraction,
		UsuallyRequired: fraction > m.cfg.GeneticCutoff,
		Mutations:       mutations,
	}
}

// Research insights
//
// Each insight is an independent rule with a fixed confidence, gated by a
// fixed threshold. Insights with no triggering evidence are omitted; the
// engine never fabricates insights to fill a quota.

func (m *PatternMiner) researchInsights(corpus []domain.Trial) []domain.ResearchInsight {
	var insights []domain.ResearchInsight
	if len(corpus) == 0 {
		return insights
	}

	if in := m.earlyPhaseInsight(corpus); in != nil {
		insights = append(insights, *in)
	}
	if in := m.industrySponsorInsight(corpus); in != nil {
		insights = append(insights, *in)
	}
	if in := m.geographicInsight(corpus); in != nil {
		insights = append(insights, *in)
	}
	return insights
}

func (m *PatternMiner) earlyPhaseInsight(corpus []domain.Trial) *domain.ResearchInsight {
	early := 0
	for _, t := range corpus {
		if isEarlyPhase(t.Phase) {
			early++
		}
	}
	fraction := float64(early) / float64(len(corpus))
	if fraction <= m.cfg.EarlyPhaseThreshold {
		return nil
	}
	return &domain.ResearchInsight{
		Kind:           "early-stage-field",
		Summary:        fmt.Sprintf("%.0f%% of trials are in phase 1 or 2, indicating an early-stage research field", fraction*100),
		Confidence:     domain.InsightConfidenceEarlyPhase,
		Evidence:       []string{fmt.Sprintf("%d of %d trials in phase 1 or 2", early, len(corpus))},
		Recommendation: "Expect limited efficacy data; monitor early-phase readouts for emerging approaches",
	}
}

var industrySponsorMarkers = []string{
	"inc", "ltd", "llc", "corp", "gmbh", "pharma", "pharmaceutical", "therapeutics", "biosciences", "biopharma", "biotech",
}

func isIndustrySponsor(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range industrySponsorMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func (m *PatternMiner) industrySponsorInsight(corpus []domain.Trial) *domain.ResearchInsight {
	ranked := rankedCounts(corpus, func(t domain.Trial) []string {
		if t.Sponsor == "" {
			return nil
		}
		return []string{t.Sponsor}
	})
	if len(ranked) == 0 {
		return nil
	}

	topFive := ranked
	if len(topFive) > 5 {
		topFive = topFive[:5]
	}
	industry := 0
	for _, entry := range topFive {
		if isIndustrySponsor(entry.label) {
			industry++
		}
	}
	fraction := float64(industry) / float64(len(topFive))
	if fraction <= m.cfg.IndustryThreshold {
		return nil
	}
	return &domain.ResearchInsight{
		Kind:           "industry-investment",
		Summary:        fmt.Sprintf("%d of the top %d sponsors are industry, indicating high industry investment in this condition", industry, len(topFive)),
		Confidence:     domain.InsightConfidenceIndustry,
		Evidence:       []string{fmt.Sprintf("%d industry sponsors among top %d", industry, len(topFive))},
		Recommendation: "Industry-sponsored trials often have broader site networks; check commercial pipelines alongside the registry",
	}
}

func (m *PatternMiner) geographicInsight(corpus []domain.Trial) *domain.ResearchInsight {
	withLocations := 0
	countryTrials := map[string]int{}
	for _, t := range corpus {
		countries := map[string]bool{}
		for _, loc := range t.Locations {
			if loc.Country != "" {
				countries[loc.Country] = true
			}
		}
		if len(countries) == 0 {
			continue
		}
		withLocations++
		for c := range countries {
			countryTrials[c]++
		}
	}
	if withLocations == 0 {
		return nil
	}

	topCountry := ""
	topCount := 0
	for c, n := range countryTrials {
		if n > topCount || (n == topCount && c < topCountry) {
			topCountry = c
			topCount = n
		}
	}
	fraction := float64(topCount) / float64(withLocations)
	if fraction <= m.cfg.GeoThreshold {
		return nil
	}
	return &domain.ResearchInsight{
		Kind:           "geographic-concentration",
		Summary:        fmt.Sprintf("%.0f%% of located trials have sites in %s, indicating geographic concentration", fraction*100, topCountry),
		Confidence:     domain.InsightConfidenceGeography,
		Evidence:       []string{fmt.Sprintf("%d of %d located trials in %s", topCount, withLocations, topCountry)},
		Recommendation: fmt.Sprintf("Patients outside %s may face travel constraints; check remote or decentralized options", topCountry),
	}
}

// Distribution patterns

type rankedEntry struct {
	label string
	count int
	ncts  []string
}

// rankedCounts counts trials by the labels keyFn yields, ranked by count
// descending with label ascending for deterministic ordering.
func rankedCounts(corpus []domain.Trial, keyFn func(domain.Trial) []string) []rankedEntry {
	counts := map[string]*rankedEntry{}
	for _, t := range corpus {
		for _, label := range keyFn(t) {
			entry, ok := counts[label]
			if !ok {
				entry = &rankedEntry{label: label}
				counts[label] = entry
			}
			entry.count++
			if len(entry.ncts) < 3 {
				entry.ncts = append(entry.ncts, t.NCTID)
			}
		}
	}

	ranked := make([]rankedEntry, 0, len(counts))
	for _, entry := range counts {
		ranked = append(ranked, *entry)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].label < ranked[j].label
	})
	return ranked
}

// distributionPatterns emits ranked phase, sponsor, and country
// distributions, top five per kind.
func (m *PatternMiner) distributionPatterns(corpus []domain.Trial) []domain.TrialPattern {
	if len(corpus) == 0 {
		return nil
	}

	total := float64(len(corpus))
	var patterns []domain.TrialPattern

	emit := func(kind string, keyFn func(domain.Trial) []string) {
		ranked := rankedCounts(corpus, keyFn)
		if len(ranked) > 5 {
			ranked = ranked[:5]
		}
		for _, entry := range ranked {
			patterns = append(patterns, domain.TrialPattern{
				Kind:       kind,
				Label:      entry.label,
				Count:      entry.count,
				Fraction:   float64(entry.count) / total,
				Confidence: domain.PatternConfidence,
				Evidence:   entry.ncts,
			})
		}
	}

	emit("phase", func(t domain.Trial) []string {
		if t.Phase == "" {
			return nil
		}
		return []string{t.Phase}
	})
	emit("sponsor", func(t domain.Trial) []string {
		if t.Sponsor == "" {
			return nil
		}
		return []string{t.Sponsor}
	})
	emit("country", func(t domain.Trial) []string {
		countries := map[string]bool{}
		var out []string
		for _, loc := range t.Locations {
			if loc.Country != "" && !countries[loc.Country] {
				countries[loc.Country] = true
				out = append(out, loc.Country)
			}
		}
		return out
	})

	return patterns
}

// isEarlyPhase reports whether a phase label denotes phase 1 or 2.
func isEarlyPhase(phase string) bool {
	p := strings.ToLower(phase)
	if p == "" {
		return false
	}
	if strings.Contains(p, "phase 3") || strings.Contains(p, "phase iii") ||
		strings.Contains(p, "phase 4") || strings.Contains(p, "phase iv") {
		return false
	}
	return strings.Contains(p, "early phase") ||
		strings.Contains(p, "phase 1") || strings.Contains(p, "phase 2") ||
		strings.Contains(p, "phase i")
}
