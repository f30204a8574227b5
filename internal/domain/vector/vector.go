// Package vector defines vector collections, items and similarity ranking.
package vector

import (
	"math"
	"regexp"
	"sort"
	"strconv"

	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/domain/value"
)

// Metric selects the similarity function of a collection.
type Metric string

const (
	// Cosine is dot(a,b) / (|a|*|b|), 0 when either norm is 0.
	Cosine Metric = "cosine"
	// Dot is the raw inner product.
	Dot Metric = "dot"
)

// MaxDim bounds the declared dimensionality of a collection.
const MaxDim = 16000

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,128}$`)

// ParseMetric parses a metric name. "dot_product" is accepted as an alias of dot.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case string(Cosine):
		return Cosine, nil
	case string(Dot), "dot_product":
		return Dot, nil
	default:
		return "", domain.NewValidationError("metric", "must be one of cosine, dot; got %q", s)
	}
}

// Collection is a tenant-scoped namespace with a fixed dimension and metric.
type Collection struct {
	Name   string
	Dim    int
	Metric Metric
}

// NewCollection validates and builds a collection declaration.
func NewCollection(name string, dim int, metric Metric) (Collection, error) {
	if err := ValidateName(name); err != nil {
		return Collection{}, err
	}
	if dim < 1 || dim > MaxDim {
		return Collection{}, domain.NewValidationError("dim", "must be between 1 and %d, got %d", MaxDim, dim)
	}
	if _, err := ParseMetric(string(metric)); err != nil {
		return Collection{}, err
	}
	return Collection{Name: name, Dim: dim, Metric: metric}, nil
}

// SameSchema reports whether two declarations agree on dimension and metric.
func (c Collection) SameSchema(o Collection) bool {
	return c.Dim == o.Dim && c.Metric == o.Metric
}

// Schema renders dim and metric for error messages.
func (c Collection) Schema() string {
	return "dim=" + strconv.Itoa(c.Dim) + " metric=" + string(c.Metric)
}

// Conflict builds the error returned when c is redeclared as requested.
func (c Collection) Conflict(requested Collection) error {
	return &domain.SchemaConflictError{
		Collection: c.Name,
		Existing:   c.Schema(),
		Requested:  requested.Schema(),
	}
}

// ValidateName checks a collection name.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return domain.NewValidationError("collection",
			"must be 1-128 characters of letters, digits, '_', '.', ':' or '-'")
	}
	return nil
}

// NotFound builds the error for a missing collection.
func NotFound(name string) error {
	return domain.NewNotFound("collection", name)
}

// Item is one stored vector with opaque metadata.
type Item struct {
	ID        string
	Embedding []float32
	Metadata  value.Fields
}

// Match is one ranked query result.
type Match struct {
	ID       string
	Score    float64
	Metadata value.Fields
}

// ValidateEmbedding checks that emb is non-empty, finite and, when dim > 0,
// exactly dim long.
func ValidateEmbedding(field string, emb []float32, dim int) error {
	if len(emb) == 0 {
		return domain.NewValidationError(field, "must not be empty")
	}
	if dim > 0 && len(emb) != dim {
		return domain.NewValidationError(field, "expected %d dimensions, got %d", dim, len(emb))
	}
	for i, v := range emb {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return domain.NewValidationError(field, "element %d is not a finite number", i)
		}
	}
	return nil
}

// ValidateItems checks an upsert batch. With dim == 0 only shape is checked;
// the collection dimension is enforced by the adapter.
func ValidateItems(items []Item, dim, maxItems int) error {
	if len(items) == 0 {
		return domain.NewValidationError("items", "must not be empty")
	}
	if maxItems > 0 && len(items) > maxItems {
		return domain.NewValidationError("items", "at most %d items per request, got %d", maxItems, len(items))
	}
	seen := make(map[string]struct{}, len(items))
	for i, it := range items {
		field := "items[" + strconv.Itoa(i) + "]"
		if err := domain.ValidateIdentifier(field+".id", it.ID, 256); err != nil {
			return err
		}
		if _, dup := seen[it.ID]; dup {
			return domain.NewValidationError(field+".id", "duplicate id %q in request", it.ID)
		}
		seen[it.ID] = struct{}{}
		if err := ValidateEmbedding(field+".embedding", it.Embedding, dim); err != nil {
			return err
		}
	}
	return nil
}

// CheckDim verifies every item matches the collection dimension.
func CheckDim(items []Item, dim int) error {
	for i, it := range items {
		if len(it.Embedding) != dim {
			return domain.NewValidationError("items["+strconv.Itoa(i)+"].embedding",
				"expected %d dimensions, got %d", dim, len(it.Embedding))
		}
	}
	return nil
}

// Score computes the similarity of a and b under metric m in float64.
// Vectors of unequal length score 0.
func Score(m Metric, a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if m == Dot {
		return dot
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Rank orders matches by descending score, ties broken by ascending id,
// and truncates to k.
func Rank(matches []Match, k int) []Match {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if k >= 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// TopK keeps the k best items of a brute-force scan.
type TopK struct {
	metric  Metric
	query   []float32
	k       int
	matches []Match
}

// NewTopK creates an accumulator for a query embedding.
func NewTopK(metric Metric, query []float32, k int) *TopK {
	return &TopK{metric: metric, query: query, k: k}
}

// Add scores one candidate.
func (t *TopK) Add(id string, emb []float32, md value.Fields) {
	t.matches = append(t.matches, Match{ID: id, Score: Score(t.metric, t.query, emb), Metadata: md})
	if len(t.matches) >= 4*t.k+64 {
		t.matches = Rank(t.matches, t.k)
	}
}

// Result returns the ranked top k.
func (t *TopK) Result() []Match {
	out := Rank(t.matches, t.k)
	if out == nil {
		out = []Match{}
	}
	return out
}
