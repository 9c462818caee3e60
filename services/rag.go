package services

import (
	"context"
	"fmt"
	"strings"

	"document-rag-platform/internal/ai"
	"document-rag-platform/internal/config"
	"document-rag-platform/internal/logger"
)

// contextSeparator joins retrieved chunk texts into one context block.
const contextSeparator = "\n\n---\n\n"

// QueryResult is the outcome of one question: the synthesized answer and
// the chunk texts that grounded it, in the store's similarity order.
type QueryResult struct {
	Answer  string
	Sources []string
}

// RAGService answers natural-language questions from the tenant's ingested
// documents: query rewriting, retrieval, context assembly, synthesis and
// response normalization.
type RAGService struct {
	cfg       *config.Config
	embedder  Embedder
	completer Completer
	index     VectorIndex
}

func NewRAGService(cfg *config.Config, embedder Embedder, completer Completer, index VectorIndex) *RAGService {
	return &RAGService{
		cfg:       cfg,
		embedder:  embedder,
		completer: completer,
		index:     index,
	}
}

// Answer runs the full query pipeline. Unrecoverable failures never escape
// to the caller: they degrade into a best-effort textual answer, which is
// the intended contract rather than an accident.
func (s *RAGService) Answer(ctx context.Context, question, tenant string, topK int) *QueryResult {
	result, err := s.answer(ctx, question, tenant, topK)
	if err != nil {
		logger.Error("query pipeline failed", "tenant", tenant, "error", err)
		return &QueryResult{
			Answer: fmt.Sprintf("I encountered an error: %v. Please make sure you have uploaded some documents first.", err),
		}
	}
	return result
}

func (s *RAGService) answer(ctx context.Context, question, tenant string, topK int) (*QueryResult, error) {
	if topK <= 0 {
		topK = s.cfg.TopK
	}

	retrievalQuery := s.rewriteQuery(ctx, question)
	if s.cfg.HyDeEnabled {
		if hyde := s.hypotheticalAnswer(ctx, question); hyde != "" {
			retrievalQuery = retrievalQuery + " " + hyde
		}
	}

	chunks, err := s.retrieve(ctx, retrievalQuery, tenant, topK)
	if err != nil {
		return nil, err
	}

	contextBlock := strings.Join(chunks, contextSeparator)
	system := fmt.Sprintf(answerPromptTemplate, contextBlock)

	// The synthesis prompt carries the original question, not the rewrite.
	completion, err := s.completer.Complete(ctx, s.cfg.ChatModel, system, question)
	if err != nil {
		return nil, err
	}

	return &QueryResult{
		Answer:  ai.NormalizeResponse(completion),
		Sources: chunks,
	}, nil
}

// rewriteQuery asks the rewrite model for a retrieval-optimized version of
// the question. Rewriting failures degrade to the raw question; they must
// never abort the whole answer.
func (s *RAGService) rewriteQuery(ctx context.Context, question string) string {
	completion, err := s.completer.Complete(ctx, s.cfg.RewriteModel, enhancedQueryPrompt, question)
	if err != nil {
		logger.Warn("query rewrite failed, using raw question", "error", err)
		return question
	}
	text, ok := completion.Text()
	if !ok {
		logger.Warn("query rewrite returned no usable text, using raw question")
		return question
	}
	return text
}

// hypotheticalAnswer generates a HyDE expansion for the retrieval query.
// Best effort: any failure simply skips the stage.
func (s *RAGService) hypotheticalAnswer(ctx context.Context, question string) string {
	completion, err := s.completer.Complete(ctx, s.cfg.RewriteModel, hydePrompt, question)
	if err != nil {
		logger.Warn("hyde expansion failed, skipping", "error", err)
		return ""
	}
	text, _ := completion.Text()
	return text
}

// retrieve embeds the retrieval query and returns the matching chunk texts
// in the store's similarity ranking. Hits without a text payload are
// skipped.
func (s *RAGService) retrieve(ctx context.Context, query, tenant string, topK int) ([]string, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := s.index.Search(ctx, CollectionName(tenant), vector, topK)
	if err != nil {
		return nil, err
	}

	chunks := make([]string, 0, len(hits))
	for _, hit := range hits {
		if text, ok := hit.Payload["text"].(string); ok && text != "" {
			chunks = append(chunks, text)
		}
	}
	logger.Debug("retrieved chunks", "tenant", tenant, "count", len(chunks))
	return chunks, nil
}
