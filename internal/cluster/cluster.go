// Package cluster discovers topical domains in a corpus by embedding
// documents and grouping them with density-based clustering. Low-density
// documents are labeled noise rather than forced into a cluster, and
// cluster membership is keyed by stable document ID, never position.
//
// The whole stage is optional: the pipeline skips it when no embedder is
// configured or the collaborator fails, and the run continues degraded.
package cluster

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/oklo/voiceprint/internal/embed"
	"github.com/oklo/voiceprint/internal/feature"
	"github.com/oklo/voiceprint/internal/filter"
	"github.com/oklo/voiceprint/internal/ingest"
)

// Config holds the clustering tunables.
type Config struct {
	// Eps is the cosine-distance neighborhood radius. Default 0.35.
	Eps float64

	// MinSize is the minimum neighborhood size for a core point, and
	// therefore the smallest possible cluster. Default 2.
	MinSize int

	// MaxTerms caps representative terms per topic. Default 8.
	MaxTerms int

	// BatchSize is texts per embedding API call. Default 50.
	BatchSize int
}

// Normalize applies defaults for unset fields.
func (c *Config) Normalize() {
	if c.Eps <= 0 {
		c.Eps = 0.35
	}
	if c.MinSize <= 0 {
		c.MinSize = 2
	}
	if c.MaxTerms <= 0 {
		c.MaxTerms = 8
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
}

// Topic is one discovered topical domain.
type Topic struct {
	ID          int      `json:"id"`
	Label       string   `json:"label"`
	MemberIDs   []string `json:"member_ids"` // document IDs, corpus order
	MemberCount int      `json:"member_count"`
	Terms       []string `json:"terms"` // representative terms, most distinctive first
}

// Result holds discovered topics plus the noise set.
type Result struct {
	Topics   []Topic  `json:"topics"`
	NoiseIDs []string `json:"noise_ids"` // documents in no cluster; still part of the corpus
}

// KnowledgeBoundaries describes what the corpus suggests the author does
// and does not write about.
type KnowledgeBoundaries struct {
	LikelyTopics  []string `json:"likely_topics"`
	AvoidedTopics []string `json:"avoided_topics"`
}

// Cluster embeds every corpus document and runs DBSCAN over cosine
// distance. Any embedder failure is returned as an error so the pipeline
// can degrade; it never panics the run.
func Cluster(ctx context.Context, corpus *filter.Corpus, embedder embed.Embedder, cfg Config) (*Result, error) {
	cfg.Normalize()

	if embedder == nil {
		return nil, fmt.Errorf("no embedder configured")
	}
	if corpus.Size() == 0 {
		return &Result{}, nil
	}

	vectors, err := embedAll(ctx, corpus, embedder, cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("embedding corpus: %w", err)
	}

	labels := dbscan(vectors, cfg.Eps, cfg.MinSize)

	byCluster := make(map[int][]int) // cluster id -> doc indices, corpus order
	var noiseIdx []int
	numClusters := 0
	for i, label := range labels {
		if label < 0 {
			noiseIdx = append(noiseIdx, i)
			continue
		}
		byCluster[label] = append(byCluster[label], i)
		if label+1 > numClusters {
			numClusters = label + 1
		}
	}

	// A corpus too small or homogeneous to separate gets one cluster
	// covering everything rather than a failure.
	if numClusters == 0 {
		all := make([]int, corpus.Size())
		for i := range all {
			all[i] = i
		}
		byCluster = map[int][]int{0: all}
		noiseIdx = nil
		numClusters = 1
	}

	corpusFreq := termFrequencies(corpus.Documents, nil)

	result := &Result{}
	for id := 0; id < numClusters; id++ {
		members := byCluster[id]
		if len(members) == 0 {
			continue
		}
		terms := representativeTerms(corpus, members, corpusFreq, cfg.MaxTerms)
		topic := Topic{
			ID:          len(result.Topics),
			Label:       topicLabel(terms),
			MemberCount: len(members),
			Terms:       terms,
		}
		for _, idx := range members {
			topic.MemberIDs = append(topic.MemberIDs, corpus.Documents[idx].ID)
		}
		result.Topics = append(result.Topics, topic)
	}

	for _, idx := range noiseIdx {
		result.NoiseIDs = append(result.NoiseIDs, corpus.Documents[idx].ID)
	}

	return result, nil
}

// Boundaries derives the knowledge-boundary lists. Likely topics come
// from cluster terms (noise documents are excluded by construction);
// avoided topics are probe vocabulary with zero corpus hits.
func Boundaries(corpus *filter.Corpus, topics []Topic) KnowledgeBoundaries {
	kb := KnowledgeBoundaries{}

	seen := make(map[string]struct{})
	for _, t := range topics {
		for i, term := range t.Terms {
			if i >= 3 {
				break
			}
			if _, ok := seen[term]; !ok {
				seen[term] = struct{}{}
				kb.LikelyTopics = append(kb.LikelyTopics, term)
			}
		}
	}
	sort.Strings(kb.LikelyTopics)

	hits := make(map[string]bool)
	for _, doc := range corpus.Documents {
		for _, w := range feature.Words(doc.RawText) {
			hits[w] = true
		}
	}
	for _, probe := range probeTopics {
		if !hits[probe] {
			kb.AvoidedTopics = append(kb.AvoidedTopics, probe)
		}
	}
	sort.Strings(kb.AvoidedTopics)

	return kb
}

// probeTopics is a broad vocabulary used only to detect absences: a
// probe the author never once mentions marks a domain to stay out of.
var probeTopics = []string{
	"politics", "religion", "sports", "finance", "medicine", "law",
	"cooking", "music", "travel", "science", "art", "fashion",
	"gaming", "parenting", "fitness", "gardening",
}

func embedAll(ctx context.Context, corpus *filter.Corpus, embedder embed.Embedder, batchSize int) ([][]float32, error) {
	vectors := make([][]float32, 0, corpus.Size())
	docs := corpus.Documents

	for i := 0; i < len(docs); i += batchSize {
		end := i + batchSize
		if end > len(docs) {
			end = len(docs)
		}
		texts := make([]string, 0, end-i)
		for _, d := range docs[i:end] {
			texts = append(texts, d.RawText)
		}
		batch, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(batch), len(texts))
		}
		for _, v := range batch {
			vectors = append(vectors, normalize(v))
		}
	}

	return vectors, nil
}

// dbscan labels each vector with a cluster id, or -1 for noise. Iteration
// is in input order, so results are deterministic for a fixed corpus.
func dbscan(vectors [][]float32, eps float64, minPts int) []int {
	const (
		unvisited = -2
		noise     = -1
	)

	n := len(vectors)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = unvisited
	}

	clusterID := 0
	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}

		neighbors := regionQuery(vectors, i, eps)
		if len(neighbors) < minPts {
			labels[i] = noise
			continue
		}

		labels[i] = clusterID
		queue := append([]int(nil), neighbors...)
		for qi := 0; qi < len(queue); qi++ {
			j := queue[qi]
			if labels[j] == noise {
				labels[j] = clusterID // border point
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = clusterID
			jNeighbors := regionQuery(vectors, j, eps)
			if len(jNeighbors) >= minPts {
				queue = append(queue, jNeighbors...)
			}
		}
		clusterID++
	}

	return labels
}

// regionQuery returns indices within eps cosine distance of point i,
// including i itself.
func regionQuery(vectors [][]float32, i int, eps float64) []int {
	var neighbors []int
	for j := range vectors {
		if cosineDistance(vectors[i], vectors[j]) <= eps {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// cosineDistance assumes unit vectors: 1 - dot. Nil or mismatched
// vectors are maximally distant.
func cosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 1
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return 1 - dot
}

// termFrequencies counts content words over a set of documents. Function
// words and tokens shorter than 3 runes are excluded; they carry style,
// not topic.
func termFrequencies(docs []ingest.Document, indices []int) map[string]int {
	freq := make(map[string]int)
	count := func(doc ingest.Document) {
		for _, w := range feature.Words(doc.RawText) {
			if len([]rune(w)) < 3 || feature.IsFunctionWord(w) {
				continue
			}
			freq[w]++
		}
	}
	if indices == nil {
		for _, doc := range docs {
			count(doc)
		}
		return freq
	}
	for _, i := range indices {
		count(docs[i])
	}
	return freq
}

// representativeTerms ranks in-cluster terms by their rate contrast
// against the corpus-wide baseline (add-one smoothed), so terms that are
// merely common everywhere do not surface. Ties break alphabetically.
func representativeTerms(corpus *filter.Corpus, members []int, corpusFreq map[string]int, maxTerms int) []string {
	clusterFreq := termFrequencies(corpus.Documents, members)
	if len(clusterFreq) == 0 {
		return nil
	}

	clusterTotal := 0
	for _, c := range clusterFreq {
		clusterTotal += c
	}
	corpusTotal := 0
	for _, c := range corpusFreq {
		corpusTotal += c
	}

	type scored struct {
		term  string
		score float64
	}
	var candidates []scored
	for term, c := range clusterFreq {
		inRate := float64(c+1) / float64(clusterTotal+1)
		baseRate := float64(corpusFreq[term]+1) / float64(corpusTotal+1)
		// weight the contrast by in-cluster evidence so one-off words
		// don't dominate tiny clusters
		score := (inRate / baseRate) * math.Log(float64(c)+1)
		candidates = append(candidates, scored{term: term, score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].term < candidates[j].term
	})

	if len(candidates) > maxTerms {
		candidates = candidates[:maxTerms]
	}
	terms := make([]string, len(candidates))
	for i, c := range candidates {
		terms[i] = c.term
	}
	return terms
}

// topicLabel is a best-effort short name from the top terms.
func topicLabel(terms []string) string {
	switch {
	case len(terms) == 0:
		return "general"
	case len(terms) == 1:
		return terms[0]
	default:
		return strings.Join(terms[:2], " / ")
	}
}
