// Package retrieval implements the RetrievalPipeline: the ranking engine
// that fans full-text and vector candidate fetches out concurrently,
// merges and scores them, optionally expands via entity lookup and graph
// traversal, and packs the result into one of several token-budgeted
// injection formats.
package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openclaw/hybridmem/internal/config"
	"github.com/openclaw/hybridmem/internal/factstore"
	"github.com/openclaw/hybridmem/internal/graphstore"
	"github.com/openclaw/hybridmem/internal/llm"
	"github.com/openclaw/hybridmem/internal/logging"
	"github.com/openclaw/hybridmem/internal/procedurestore"
	"github.com/openclaw/hybridmem/internal/store"
	"github.com/openclaw/hybridmem/internal/vectorindex"
)

const (
	graphExpansionScore = 0.45
	charsPerToken       = 4
	hotCategoryLabel    = "hot"
)

// Options parameterises a single Recall call.
type Options struct {
	Query             string
	Limit             int
	MinScore          float64
	ScopeFilter       *store.ScopeFilter
	Tag               string
	Entities          []string
	AsOf              *time.Time
	IncludeCold       bool
	IncludeSuperseded bool
}

// candidate is a scored fact in flight through the pipeline; source records
// which stage contributed it; it breaks merge ties (FTS > vector) and is
// shown in the full and progressive_hybrid output formats.
type candidate struct {
	fact   *store.Fact
	score  float64
	source string
}

// Pipeline is the RetrievalPipeline. It is safe for concurrent Recall calls;
// lastIndex is guarded by mu since it is replaced on every call.
type Pipeline struct {
	idx   *store.KeyValueIndex
	vec   *vectorindex.VectorIndex
	graph *graphstore.GraphStore
	facts *factstore.FactStore
	procs *procedurestore.ProcedureStore

	embedder llm.Embedder
	chat     llm.Chat

	recallCfg config.AutoRecallConfig
	graphCfg  config.GraphConfig
	tierCfg   config.MemoryTieringConfig

	mu        sync.Mutex
	lastIndex map[int]string
}

// Deps bundles Pipeline's dependencies.
type Deps struct {
	Index         *store.KeyValueIndex
	Vector        *vectorindex.VectorIndex
	Graph         *graphstore.GraphStore
	Facts         *factstore.FactStore
	Procedures    *procedurestore.ProcedureStore
	Embedder      llm.Embedder
	Chat          llm.Chat
	AutoRecall    config.AutoRecallConfig
	GraphRecall   config.GraphConfig
	MemoryTiering config.MemoryTieringConfig
}

// New constructs a Pipeline.
func New(deps Deps) *Pipeline {
	return &Pipeline{
		idx: deps.Index, vec: deps.Vector, graph: deps.Graph, facts: deps.Facts, procs: deps.Procedures,
		embedder: deps.Embedder, chat: deps.Chat,
		recallCfg: deps.AutoRecall, graphCfg: deps.GraphRecall, tierCfg: deps.MemoryTiering,
	}
}

// Recall runs the full algorithm and returns the formatted recall-injection
// block (hot, then procedures, then packed recall), per §6.
func (p *Pipeline) Recall(ctx context.Context, opts Options) (string, error) {
	timer := logging.StartTimer(logging.CategoryRetrieval, "Recall")
	defer timer.Stop()

	if opts.Limit <= 0 {
		opts.Limit = p.recallCfg.Limit
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	minScore := opts.MinScore
	if minScore == 0 {
		minScore = p.recallCfg.MinScore
	}

	candidates, err := p.fetchCandidates(ctx, opts, minScore)
	if err != nil {
		return "", fmt.Errorf("fetch candidates: %w", err)
	}

	candidates = p.expandEntities(opts, candidates)
	candidates = excludeUnwanted(candidates, opts)
	candidates = p.expandGraph(opts, candidates)
	p.applyBoosts(candidates)
	sortCandidates(candidates)

	if len(candidates) > opts.Limit {
		candidates = candidates[:opts.Limit]
	}

	body := p.pack(candidates, p.recallCfg.InjectionFormat)

	p.feedback(candidates)

	var sb strings.Builder
	if hot := p.hotBlock(); hot != "" {
		sb.WriteString("<hot-memories>\n")
		sb.WriteString(hot)
		sb.WriteString("</hot-memories>\n")
	}
	if procs := p.procedureBlock(opts.Query); procs != "" {
		sb.WriteString("<relevant-procedures>\n")
		sb.WriteString(procs)
		sb.WriteString("</relevant-procedures>\n")
	}
	sb.WriteString("<relevant-memories>\n")
	sb.WriteString(body)
	sb.WriteString("</relevant-memories>\n")

	return sb.String(), nil
}

// fetchCandidates runs the full-text and (unless a tag filter is set)
// vector fetches concurrently via errgroup, then merges by id preferring
// the higher score and full-text on ties.
func (p *Pipeline) fetchCandidates(ctx context.Context, opts Options, minScore float64) ([]*candidate, error) {
	var ftsResults, vecResults []*candidate

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		res, err := p.searchFTS(opts)
		if err != nil {
			return fmt.Errorf("fts search: %w", err)
		}
		ftsResults = res
		return nil
	})

	if opts.Tag == "" && p.embedder != nil && p.vec != nil {
		g.Go(func() error {
			res, err := p.searchVector(gctx, opts, minScore)
			if err != nil {
				logging.RetrievalWarn("vector search failed, falling back to fts-only: %v", err)
				return nil
			}
			vecResults = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return mergeCandidates(ftsResults, vecResults), nil
}

func (p *Pipeline) searchFTS(opts Options) ([]*candidate, error) {
	scored, err := p.idx.SearchFTS(opts.Query, store.SearchOptions{
		Limit: opts.Limit, ScopeFilter: opts.ScopeFilter, IncludeCold: opts.IncludeCold,
		IncludeSuperseded: opts.IncludeSuperseded, AsOf: opts.AsOf, ReinforcementBoost: 0.1,
	})
	if err != nil {
		return nil, err
	}
	return p.hydrate(scored, "fts")
}

// searchVector optionally expands the query with a 1-2 sentence
// hypothetical-answer from Chat before embedding, then searches the vector
// index for up to 2*limit candidates and applies the dynamic salience
// multiplier to each score.
func (p *Pipeline) searchVector(ctx context.Context, opts Options, minScore float64) ([]*candidate, error) {
	queryText := opts.Query
	if p.chat != nil {
		if expanded, err := p.chat.Complete(ctx, "", hypotheticalAnswerPrompt(opts.Query), 0.3, 120); err == nil && expanded != "" {
			queryText = queryText + " " + expanded
		}
	}

	vec, err := p.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := p.vec.Search(vec, opts.Limit*2, minScore)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	now := time.Now()
	var out []*candidate
	for _, m := range matches {
		f, err := p.idx.Get(m.ID, store.GetOptions{AsOf: opts.AsOf, ScopeFilter: opts.ScopeFilter})
		if err != nil {
			continue
		}
		score := m.Cosine * dynamicSalience(f, now)
		out = append(out, &candidate{fact: f, score: score, source: "vector"})
	}
	return out, nil
}

func hypotheticalAnswerPrompt(query string) string {
	return fmt.Sprintf("Write a 1-2 sentence hypothetical answer to this question, used only to improve semantic search recall: %s", query)
}

// dynamicSalience multiplies importance, recency, and decay-class factors.
func dynamicSalience(f *store.Fact, now time.Time) float64 {
	importanceFactor := 0.5 + 0.5*f.Importance
	ageDays := now.Sub(f.LastConfirmedAt).Hours() / 24
	recencyFactor := 0.8 + 0.2*math.Max(0, 1-ageDays/90)
	decayClassFactor := 1.0
	switch f.DecayClass {
	case store.DecayPermanent:
		decayClassFactor = 1.2
	case store.DecayStable:
		decayClassFactor = 1.1
	case store.DecaySession, store.DecayCheckpoint:
		decayClassFactor = 0.9
	}
	return importanceFactor * recencyFactor * decayClassFactor
}

func (p *Pipeline) hydrate(scored []store.ScoredID, source string) ([]*candidate, error) {
	out := make([]*candidate, 0, len(scored))
	for _, s := range scored {
		f, err := p.idx.Get(s.ID, store.GetOptions{})
		if err != nil {
			continue
		}
		out = append(out, &candidate{fact: f, score: s.Score, source: source})
	}
	return out, nil
}

// mergeCandidates unions by id, preferring the higher score and full-text
// over vector on ties.
func mergeCandidates(fts, vec []*candidate) []*candidate {
	byID := make(map[string]*candidate, len(fts)+len(vec))
	order := make([]string, 0, len(fts)+len(vec))

	add := func(c *candidate) {
		existing, ok := byID[c.fact.ID]
		if !ok {
			byID[c.fact.ID] = c
			order = append(order, c.fact.ID)
			return
		}
		if c.score > existing.score || (c.score == existing.score && c.source == "fts") {
			byID[c.fact.ID] = c
		}
	}

	for _, c := range fts {
		add(c)
	}
	for _, c := range vec {
		add(c)
	}

	out := make([]*candidate, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}

// excludeUnwanted drops superseded facts unless requested, enforces as_of,
// and excludes cold-tier facts unless requested.
func excludeUnwanted(cands []*candidate, opts Options) []*candidate {
	out := cands[:0]
	for _, c := range cands {
		if !opts.IncludeSuperseded && c.fact.SupersededAt != nil {
			continue
		}
		if opts.AsOf != nil {
			validTo := time.Unix(1<<62, 0)
			if c.fact.ValidTo != nil {
				validTo = *c.fact.ValidTo
			}
			if opts.AsOf.Before(c.fact.ValidFrom) || opts.AsOf.After(validTo) {
				continue
			}
		}
		if !opts.IncludeCold && c.fact.Tier == store.TierCold {
			continue
		}
		out = append(out, c)
	}
	return out
}

// expandEntities adds up to maxFactsPerEntity results from lookup(entity)
// for each configured entity substring-matched in the query, at score 1.0.
func (p *Pipeline) expandEntities(opts Options, cands []*candidate) []*candidate {
	if !p.recallCfg.EntityLookup || len(opts.Entities) == 0 {
		return cands
	}

	const maxFactsPerEntity = 5
	present := make(map[string]bool, len(cands))
	for _, c := range cands {
		present[c.fact.ID] = true
	}

	queryLower := strings.ToLower(opts.Query)
	for _, entity := range opts.Entities {
		if !strings.Contains(queryLower, strings.ToLower(entity)) {
			continue
		}
		matches, err := p.idx.Lookup(entity, "", "", store.SearchOptions{Limit: maxFactsPerEntity})
		if err != nil {
			logging.RetrievalWarn("entity lookup failed for %q: %v", entity, err)
			continue
		}
		for _, m := range matches {
			if present[m.ID] {
				continue
			}
			f, err := p.idx.Get(m.ID, store.GetOptions{})
			if err != nil {
				continue
			}
			cands = append(cands, &candidate{fact: f, score: 1.0, source: "entity"})
			present[m.ID] = true
		}
	}
	return cands
}

// expandGraph adds up to opts.Limit facts reachable from the current
// candidate set via GraphStore.Connected, at a fixed modest score.
func (p *Pipeline) expandGraph(opts Options, cands []*candidate) []*candidate {
	if !p.graphCfg.UseInRecall || p.graph == nil || len(cands) == 0 {
		return cands
	}

	present := make(map[string]bool, len(cands))
	seedIDs := make([]string, 0, len(cands))
	for _, c := range cands {
		present[c.fact.ID] = true
		seedIDs = append(seedIDs, c.fact.ID)
	}

	connected, err := p.graph.Connected(seedIDs, p.graphCfg.MaxTraversalDepth)
	if err != nil {
		logging.RetrievalWarn("graph expansion failed: %v", err)
		return cands
	}

	added := 0
	for _, id := range connected {
		if added >= opts.Limit || present[id] {
			continue
		}
		f, err := p.idx.Get(id, store.GetOptions{})
		if err != nil {
			continue
		}
		cands = append(cands, &candidate{fact: f, score: graphExpansionScore, source: "graph"})
		present[id] = true
		added++
	}
	return cands
}

// applyBoosts multiplies each candidate's score by preferLongTerm,
// useImportanceRecency, and access-count factors.
func (p *Pipeline) applyBoosts(cands []*candidate) {
	now := time.Now()
	for _, c := range cands {
		if p.recallCfg.PreferLongTerm {
			switch c.fact.DecayClass {
			case store.DecayPermanent:
				c.score *= 1.2
			case store.DecayStable:
				c.score *= 1.1
			}
		}
		if p.recallCfg.UseImportanceRecency {
			ageDays := now.Sub(c.fact.LastConfirmedAt).Hours() / 24
			c.score *= (0.7 + 0.3*c.fact.Importance) * (0.8 + 0.2*math.Max(0, 1-ageDays/90))
		}
		c.score *= 1 + 0.1*math.Log(float64(c.fact.RecallCount)+1)
	}
}

// sortCandidates orders descending by score, breaking ties by newer
// source_date then newer created_at.
func sortCandidates(cands []*candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.score != b.score {
			return a.score > b.score
		}
		aDate, bDate := factSourceDate(a.fact), factSourceDate(b.fact)
		if !aDate.Equal(bDate) {
			return aDate.After(bDate)
		}
		return a.fact.CreatedAt.After(b.fact.CreatedAt)
	})
}

func factSourceDate(f *store.Fact) time.Time {
	if f.SourceDate != nil {
		return *f.SourceDate
	}
	return time.Time{}
}

// feedback passes surviving ids to RefreshAccessed and strengthens RELATED_TO
// edges between every pair of included facts.
func (p *Pipeline) feedback(cands []*candidate) {
	if len(cands) == 0 {
		return
	}
	ids := make([]string, len(cands))
	for i, c := range cands {
		ids[i] = c.fact.ID
	}
	if p.facts != nil {
		if err := p.facts.RefreshAccessed(ids); err != nil {
			logging.RetrievalWarn("refresh_accessed failed: %v", err)
		}
	}
	if p.graph != nil && p.graphCfg.Enabled {
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				if err := p.graph.StrengthenRelated(ids[i], ids[j]); err != nil {
					logging.RetrievalWarn("strengthen_related(%s,%s) failed: %v", ids[i], ids[j], err)
				}
			}
		}
	}
}

// hotBlock renders currently hot-tier facts, budgeted by hot_max_tokens and
// capped at hot_max_facts.
func (p *Pipeline) hotBlock() string {
	if !p.tierCfg.Enabled {
		return ""
	}
	n, err := p.idx.Count("", string(store.TierHot))
	if err != nil || n == 0 {
		return ""
	}

	var hotFacts []*store.Fact
	_ = p.idx.ForEachCurrent(func(f *store.Fact) error {
		if f.Tier == store.TierHot {
			hotFacts = append(hotFacts, f)
		}
		return nil
	})

	maxFacts := p.tierCfg.HotMaxFacts
	if maxFacts <= 0 {
		maxFacts = 50
	}
	maxTokens := p.tierCfg.HotMaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}

	var sb strings.Builder
	tokens := 0
	for i, f := range hotFacts {
		if i >= maxFacts {
			break
		}
		line := fmt.Sprintf("- [hot/%s] %s\n", f.Category, displayText(f, p.recallCfg.MaxPerMemoryChars))
		cost := estimateTokens(line)
		if tokens+cost > maxTokens {
			break
		}
		sb.WriteString(line)
		tokens += cost
	}
	return sb.String()
}

// procedureBlock renders the top positive procedures matching task.
func (p *Pipeline) procedureBlock(task string) string {
	if p.procs == nil || task == "" {
		return ""
	}
	procs, err := p.procs.Search(task, 3, 0.1)
	if err != nil || len(procs) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, pr := range procs {
		sb.WriteString(fmt.Sprintf("- %s (confidence %.2f)\n", pr.TaskPattern, pr.Confidence))
	}
	return sb.String()
}

func estimateTokens(s string) int {
	n := len(s) / charsPerToken
	if n == 0 {
		n = 1
	}
	return n
}

func displayText(f *store.Fact, maxChars int) string {
	text := f.Text
	if f.Summary != "" && len(f.Summary) < len(text) {
		text = f.Summary
	}
	if maxChars > 0 && len(text) > maxChars {
		text = text[:maxChars] + "…"
	}
	return text
}
