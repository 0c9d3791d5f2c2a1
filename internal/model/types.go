// Package model defines the core routing and conversation data types.
package model

import "time"

// Language is a detected query language.
type Language string

const (
	LangRussian Language = "russian"
	LangEnglish Language = "english"
)

// Intent classifies what kind of answer a query expects.
type Intent string

const (
	IntentDefinition   Intent = "definition"
	IntentComparison   Intent = "comparison"
	IntentProcedure    Intent = "procedure"
	IntentQuantitative Intent = "quantitative"
	IntentTemporal     Intent = "temporal"
	IntentLocation     Intent = "location"
	IntentCausal       Intent = "causal"
	IntentGeneral      Intent = "general"
)

// Fragment is a retrieved unit of source text with its cosine distance.
// Fragments are immutable once returned from retrieval and are discarded
// after the query completes.
type Fragment struct {
	Content    string
	SourceFile string
	Distance   float64           // cosine distance in [0,2], lower is closer
	Attrs      map[string]string // page/section metadata, source-specific
}

// Similarity converts the fragment's cosine distance into a similarity score.
func (f Fragment) Similarity() float64 { return 1 - f.Distance }

// QueryAnalysis is the output of query normalization.
type QueryAnalysis struct {
	Original   string   `json:"original"`
	Cleaned    string   `json:"cleaned"`
	Corrected  string   `json:"corrected"`
	FinalForm  string   `json:"final_form"` // possibly context-augmented
	Language   Language `json:"language"`
	Intent     Intent   `json:"intent"`
	Keywords   []string `json:"keywords"`
	Expansions []string `json:"expansions"` // original query always first
	HasContext bool     `json:"has_context"`
}

// SourceRef points at a source file an answer drew from.
type SourceRef struct {
	File string `json:"file"`
	Page string `json:"page,omitempty"`
}

// RoutingDecision is the tiered answerability verdict for one query.
// Confidence is derived from the single best fragment, never an average.
type RoutingDecision struct {
	CanAnswer   bool     `json:"can_answer"`
	Confidence  float64  `json:"confidence"`
	Context     string   `json:"-"`
	SourceCount int      `json:"source_count"`
	Reasoning   string   `json:"reasoning"`
	Language    Language `json:"language"`
	Intent      Intent   `json:"intent"`
}

// Interaction is one completed query/response turn held in conversation memory.
type Interaction struct {
	ID             string             `json:"id"`
	Timestamp      time.Time          `json:"timestamp"`
	Query          string             `json:"query"`
	Response       string             `json:"response"`
	Sources        []SourceRef        `json:"sources,omitempty"`
	QueryTopics    map[string]bool    `json:"-"`
	ResponseTopics map[string]bool    `json:"-"`
	TopicWeights   map[string]float64 `json:"-"`
	SemanticHash   string             `json:"semantic_hash"`
	Length         int                `json:"length"` // runes in query + response
}

// TopicShift records a detected jump between consecutive topic sets.
// Diagnostics only: dropping these never affects answer quality.
type TopicShift struct {
	From       []string  `json:"from"`
	To         []string  `json:"to"`
	Similarity float64   `json:"similarity"`
	Kind       string    `json:"kind"` // initial, continuation, evolution, shift
	At         time.Time `json:"at"`
}

// ShiftReport is the result of conversation shift detection.
type ShiftReport struct {
	Shifted       bool     `json:"shifted"`
	Confidence    float64  `json:"confidence"`
	CurrentTopics []string `json:"current_topics,omitempty"`
	RecentTopics  []string `json:"recent_topics,omitempty"`
	NewTopics     []string `json:"new_topics,omitempty"`
}
