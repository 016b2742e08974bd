package quizengine

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// DefaultBatchSize is the maximum number of questions requested from
// the source in one call.
const DefaultBatchSize = 5

// maxStalledBatches bounds how many consecutive batches may be dropped
// entirely as duplicates before the remaining quota is filled with
// fallback questions, so generation can never loop forever.
const maxStalledBatches = 3

// GeneratorConfig tunes the Generation Orchestrator. Passed explicitly
// at construction; there is no process-wide generation state.
type GeneratorConfig struct {
	BatchSize           int
	SimilarityThreshold float64
	Similarity          Similarity
	// ContextChunkLimit is how many retrieved chunks ground a topic's
	// generation prompt.
	ContextChunkLimit int
}

// DefaultGeneratorConfig returns the reference configuration.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		BatchSize:           DefaultBatchSize,
		SimilarityThreshold: DefaultSimilarityThreshold,
		Similarity:          SequenceRatio{},
		ContextChunkLimit:   20,
	}
}

func (c *GeneratorConfig) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if c.Similarity == nil {
		c.Similarity = SequenceRatio{}
	}
	if c.ContextChunkLimit <= 0 {
		c.ContextChunkLimit = 20
	}
}

// Orchestrator populates a session's master question list and builds
// its initial shuffled active pool. It drives the external question
// source in batches per topic, filters near-duplicates, merges
// user-supplied questions, and attaches source attribution when a
// retriever is available.
type Orchestrator struct {
	source    QuestionSource
	retriever Retriever
	cfg       GeneratorConfig
	trace     *GenerationTrace
	rng       *rand.Rand
}

// NewOrchestrator creates an orchestrator. The retriever may be nil;
// generation then runs without grounding context or attribution.
//
// The rng is shared by every session this orchestrator populates, and
// sessions may be populated from concurrent goroutines, so its source
// is locked.
func NewOrchestrator(source QuestionSource, retriever Retriever, cfg GeneratorConfig) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{
		source:    source,
		retriever: retriever,
		cfg:       cfg,
		rng:       rand.New(&lockedSource{src: rand.NewSource(time.Now().UnixNano())}),
	}
}

// lockedSource serializes access to a rand.Source so one *rand.Rand can
// be used from multiple goroutines, the same way the package-level rand
// functions are made safe.
type lockedSource struct {
	mu  sync.Mutex
	src rand.Source
}

func (s *lockedSource) Int63() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Int63()
}

func (s *lockedSource) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Seed(seed)
}

// SetTrace attaches a generation trace to the orchestrator and, when
// the source supports it, to the source as well.
func (o *Orchestrator) SetTrace(trace *GenerationTrace) {
	o.trace = trace
	if tracer, ok := o.source.(interface{ SetTrace(*GenerationTrace) }); ok {
		tracer.SetTrace(trace)
	}
}

// Populate fills the session's master question list and active pool.
// It must be invoked at most once per session; the state machine
// guarantees that, and Populate rejects a session that already has
// questions as a second line of defense.
func (o *Orchestrator) Populate(ctx context.Context, sess *Session) error {
	if len(sess.Questions) > 0 || len(sess.ActivePool) > 0 {
		return fmt.Errorf("session %s already has questions; generation runs once per session", sess.ID)
	}

	// User-supplied questions enter the master list first, so their
	// canonical ids come before generated ones.
	topicNames := make([]string, len(sess.Topics))
	for i, t := range sess.Topics {
		topicNames[i] = t.Name
	}
	for _, text := range sess.UserQuestions {
		interpreted, err := o.source.InterpretUserQuestion(ctx, text, topicNames, sess.Difficulty)
		var q *Question
		if err != nil {
			log.Printf("Failed to interpret user question %q: %v", text, err)
			q = fallbackUserQuestion(text, sess.Topics, sess.Difficulty)
		} else {
			q = questionFromInterpretation(text, interpreted, sess.Topics, sess.Difficulty)
		}
		if o.trace != nil {
			o.trace.LogUserQuestion(text, err == nil)
		}
		o.annotate(ctx, q)
		sess.Questions = append(sess.Questions, q)
	}

	quotas := QuestionsPerTopic(sess.Topics, sess.TotalQuestions)
	for _, topic := range sess.Topics {
		if err := o.generateForTopic(ctx, sess, topic.Name, quotas[topic.Name]); err != nil {
			return err
		}
	}

	// One-time canonical ID assignment over the whole master list.
	for i, q := range sess.Questions {
		q.ID = fmt.Sprintf("q-%d", i+1)
	}

	buildActivePool(sess, o.rng)

	log.Printf("Generated %d questions for session %s (%d user + %d generated)",
		len(sess.Questions), sess.ID, len(sess.UserQuestions), len(sess.Questions)-len(sess.UserQuestions))
	return nil
}

// generateForTopic drives batched source calls for one topic until its
// quota is met. Source failures degrade to fallback questions; they
// never abort the session.
func (o *Orchestrator) generateForTopic(ctx context.Context, sess *Session, topic string, quota int) error {
	filter := NewDuplicateFilter(o.cfg.Similarity, o.cfg.SimilarityThreshold)
	var avoid []string

	// User questions already assigned to this topic count for duplicate
	// detection and the avoid list.
	for _, q := range sess.Questions {
		if q.Topic == topic {
			filter.Observe(q.Text)
			avoid = append(avoid, q.Text)
		}
	}

	contextText := o.topicContext(ctx, topic)

	have := 0
	stalled := 0
	for have < quota {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := o.cfg.BatchSize
		if remaining := quota - have; remaining < n {
			n = remaining
		}

		batch, err := o.source.Generate(ctx, BatchRequest{
			Topic:      topic,
			Count:      n,
			Difficulty: sess.Difficulty,
			Context:    contextText,
			Avoid:      avoid,
		})
		if err != nil {
			log.Printf("Question generation failed for %q: %v", topic, err)
			fallback := FallbackQuestions(topic, quota-have, sess.Difficulty)
			if o.trace != nil {
				o.trace.LogFallback(topic, len(fallback), err)
			}
			sess.Questions = append(sess.Questions, fallback...)
			return nil
		}

		kept := 0
		for _, q := range batch {
			if have >= quota {
				break
			}
			if filter.IsDuplicate(q.Text) {
				VerboseLog("Dropping near-duplicate question for %q: %s", topic, q.Text)
				continue
			}
			q.Topic = topic
			q.Difficulty = sess.Difficulty
			repairQuestion(q)
			o.annotate(ctx, q)
			sess.Questions = append(sess.Questions, q)
			avoid = append(avoid, q.Text)
			kept++
			have++
		}
		if o.trace != nil {
			o.trace.LogBatch(topic, n, kept, len(batch)-kept)
		}

		if kept == 0 {
			stalled++
			if stalled >= maxStalledBatches {
				log.Printf("Generation for %q stalled on duplicates, filling %d remaining with fallbacks", topic, quota-have)
				fallback := FallbackQuestions(topic, quota-have, sess.Difficulty)
				if o.trace != nil {
					o.trace.LogFallback(topic, len(fallback), fmt.Errorf("stalled on duplicates"))
				}
				sess.Questions = append(sess.Questions, fallback...)
				return nil
			}
		} else {
			stalled = 0
		}
	}
	return nil
}

// topicContext retrieves grounding text for a topic's generation
// prompt. No retriever, or a failing one, means no context.
func (o *Orchestrator) topicContext(ctx context.Context, topic string) string {
	if o.retriever == nil {
		return ""
	}
	results, err := o.retriever.Search(ctx, topic, o.cfg.ContextChunkLimit)
	if err != nil {
		log.Printf("Retriever search failed for %q: %v", topic, err)
		return ""
	}
	if len(results) == 0 {
		VerboseLog("No relevant chunks found for %q", topic)
		return ""
	}
	chunks := make([]string, 0, len(results))
	for _, r := range results {
		if r.Text != "" {
			chunks = append(chunks, r.Text)
		}
	}
	return strings.Join(chunks, "\n")
}

// annotate attaches source attribution from the best-matching retrieved
// chunk to a question. Absence of a retriever, or any retrieval
// failure, leaves the question unchanged.
func (o *Orchestrator) annotate(ctx context.Context, q *Question) {
	if o.retriever == nil {
		return
	}
	results, err := o.retriever.Search(ctx, q.Text, 1)
	if err != nil || len(results) == 0 {
		return
	}
	best := results[0]
	if best.Source == "" && best.Page == 0 && best.Slide == 0 {
		return
	}
	q.Source = &SourceRef{
		Source:  best.Source,
		Page:    best.Page,
		Slide:   best.Slide,
		Excerpt: best.Text,
	}

	var sb strings.Builder
	sb.WriteString(q.Explanation)
	sb.WriteString("\n\nSource: ")
	sb.WriteString(best.Source)
	if best.Page > 0 {
		fmt.Fprintf(&sb, " (page %d)", best.Page)
	} else if best.Slide > 0 {
		fmt.Fprintf(&sb, " (slide %d)", best.Slide)
	}
	q.Explanation = sb.String()
}
