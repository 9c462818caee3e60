package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"document-rag-platform/internal/ai"
	"document-rag-platform/internal/config"
	"document-rag-platform/internal/vectorstore"
)

func ragConfig() *config.Config {
	return &config.Config{
		ChatModel:    "chat-model",
		RewriteModel: "rewrite-model",
		TopK:         5,
	}
}

func hitsFor(texts ...string) []vectorstore.ScoredPoint {
	hits := make([]vectorstore.ScoredPoint, 0, len(texts))
	for _, text := range texts {
		hits = append(hits, vectorstore.ScoredPoint{
			Score:   0.9,
			Payload: map[string]any{"doc_id": "abc", "text": text},
		})
	}
	return hits
}

func TestAnswerHappyPath(t *testing.T) {
	embedder := &fakeEmbedder{}
	index := newFakeIndex()
	index.searchHits = hitsFor("first chunk", "second chunk")
	completer := &fakeCompleter{
		completeFn: func(model, system, user string) (*ai.Completion, error) {
			if model == "rewrite-model" {
				return stopCompletion("optimized retrieval query"), nil
			}
			if user != "what is in the report?" {
				t.Errorf("synthesis must receive the original question, got %q", user)
			}
			if !strings.Contains(system, "first chunk"+contextSeparator+"second chunk") {
				t.Errorf("context block not assembled with separator: %q", system)
			}
			return stopCompletion("The report covers revenue."), nil
		},
	}
	svc := NewRAGService(ragConfig(), embedder, completer, index)

	result := svc.Answer(context.Background(), "what is in the report?", "alice", 0)
	if result.Answer != "The report covers revenue." {
		t.Fatalf("Answer = %q", result.Answer)
	}
	if len(result.Sources) != 2 || result.Sources[0] != "first chunk" {
		t.Fatalf("Sources = %v", result.Sources)
	}
	if index.lastSearch != "user_alice" {
		t.Fatalf("searched collection %q, want user_alice", index.lastSearch)
	}
	if embedder.lastText != "optimized retrieval query" {
		t.Fatalf("retrieval used %q, want the rewritten query", embedder.lastText)
	}
}

func TestAnswerRewriteFailureFallsBackToRawQuestion(t *testing.T) {
	embedder := &fakeEmbedder{}
	index := newFakeIndex()
	index.searchHits = hitsFor("a chunk")
	completer := &fakeCompleter{
		completeFn: func(model, system, user string) (*ai.Completion, error) {
			if model == "rewrite-model" {
				return nil, errors.New("rewrite model unavailable")
			}
			return stopCompletion("answer"), nil
		},
	}
	svc := NewRAGService(ragConfig(), embedder, completer, index)

	result := svc.Answer(context.Background(), "raw question", "alice", 0)
	if result.Answer != "answer" {
		t.Fatalf("Answer = %q", result.Answer)
	}
	if embedder.lastText != "raw question" {
		t.Fatalf("retrieval used %q, want the raw question", embedder.lastText)
	}
}

func TestAnswerRewriteUnusableTextFallsBack(t *testing.T) {
	embedder := &fakeEmbedder{}
	index := newFakeIndex()
	completer := &fakeCompleter{
		completeFn: func(model, system, user string) (*ai.Completion, error) {
			if model == "rewrite-model" {
				return &ai.Completion{Candidates: []ai.Candidate{{Reason: ai.FinishSafety}}}, nil
			}
			return stopCompletion("answer"), nil
		},
	}
	svc := NewRAGService(ragConfig(), embedder, completer, index)

	svc.Answer(context.Background(), "blocked rewrite", "alice", 0)
	if embedder.lastText != "blocked rewrite" {
		t.Fatalf("retrieval used %q, want the raw question", embedder.lastText)
	}
}

func TestAnswerNoCollectionDegradesGracefully(t *testing.T) {
	embedder := &fakeEmbedder{}
	index := newFakeIndex()
	index.searchErr = vectorstore.ErrCollectionNotFound
	completer := &fakeCompleter{
		completeFn: func(model, system, user string) (*ai.Completion, error) {
			return stopCompletion("unused"), nil
		},
	}
	svc := NewRAGService(ragConfig(), embedder, completer, index)

	result := svc.Answer(context.Background(), "anything", "newuser", 0)
	if result == nil {
		t.Fatal("Answer must never return nil")
	}
	if !strings.Contains(result.Answer, "uploaded some documents") {
		t.Fatalf("expected degraded answer mentioning uploads, got %q", result.Answer)
	}
	if len(result.Sources) != 0 {
		t.Fatalf("degraded answer must carry no sources, got %v", result.Sources)
	}
}

func TestAnswerZeroHitsStillSynthesizes(t *testing.T) {
	embedder := &fakeEmbedder{}
	index := newFakeIndex() // empty searchHits
	completer := &fakeCompleter{
		completeFn: func(model, system, user string) (*ai.Completion, error) {
			if model == "rewrite-model" {
				return stopCompletion("rewritten"), nil
			}
			return stopCompletion("No relevant documents were found."), nil
		},
	}
	svc := NewRAGService(ragConfig(), embedder, completer, index)

	result := svc.Answer(context.Background(), "unknown topic", "alice", 0)
	if result.Answer != "No relevant documents were found." {
		t.Fatalf("Answer = %q", result.Answer)
	}
	system := completer.lastSystem["chat-model"]
	if !strings.Contains(system, "INFORMATION:") {
		t.Fatalf("synthesis prompt missing information block: %q", system)
	}
}

func TestAnswerSynthesisFailureDegrades(t *testing.T) {
	embedder := &fakeEmbedder{}
	index := newFakeIndex()
	index.searchHits = hitsFor("a chunk")
	completer := &fakeCompleter{
		completeFn: func(model, system, user string) (*ai.Completion, error) {
			if model == "rewrite-model" {
				return stopCompletion("rewritten"), nil
			}
			return nil, errors.New("chat model down")
		},
	}
	svc := NewRAGService(ragConfig(), embedder, completer, index)

	result := svc.Answer(context.Background(), "question", "alice", 0)
	if !strings.Contains(result.Answer, "I encountered an error") {
		t.Fatalf("expected degraded answer, got %q", result.Answer)
	}
}

func TestAnswerSafetyBlockNormalized(t *testing.T) {
	embedder := &fakeEmbedder{}
	index := newFakeIndex()
	index.searchHits = hitsFor("a chunk")
	completer := &fakeCompleter{
		completeFn: func(model, system, user string) (*ai.Completion, error) {
			if model == "rewrite-model" {
				return stopCompletion("rewritten"), nil
			}
			return &ai.Completion{Candidates: []ai.Candidate{{Reason: ai.FinishSafety, Text: "partial unsafe text"}}}, nil
		},
	}
	svc := NewRAGService(ragConfig(), embedder, completer, index)

	result := svc.Answer(context.Background(), "question", "alice", 0)
	if result.Answer != ai.MsgSafetyBlock {
		t.Fatalf("Answer = %q, want the safety message", result.Answer)
	}
}

func TestAnswerHyDEAppendsHypothetical(t *testing.T) {
	cfg := ragConfig()
	cfg.HyDeEnabled = true
	embedder := &fakeEmbedder{}
	index := newFakeIndex()
	index.searchHits = hitsFor("a chunk")
	completer := &fakeCompleter{
		completeFn: func(model, system, user string) (*ai.Completion, error) {
			if model == "rewrite-model" {
				if strings.Contains(system, "hypothetical") {
					return stopCompletion("hypothetical answer text"), nil
				}
				return stopCompletion("rewritten query"), nil
			}
			return stopCompletion("answer"), nil
		},
	}
	svc := NewRAGService(cfg, embedder, completer, index)

	svc.Answer(context.Background(), "question", "alice", 0)
	want := "rewritten query hypothetical answer text"
	if embedder.lastText != want {
		t.Fatalf("retrieval query = %q, want %q", embedder.lastText, want)
	}
}

func TestIngestThenAnswerRoundTrip(t *testing.T) {
	cfg := &config.Config{
		MaxChunkSize: 100,
		ChunkOverlap: 20,
		ChatModel:    "chat-model",
		RewriteModel: "rewrite-model",
		TopK:         5,
	}
	store := newFakeStore()
	embedder := &fakeEmbedder{}
	index := newFakeIndex()
	ingestSvc := NewIngestionService(cfg, store, embedder, index)

	// Half a window with no sentence boundary: must land as one chunk and
	// come back as the top retrieval hit for a query against the tenant.
	text := strings.Repeat("x", 50)
	doc, chunks, err := ingestSvc.Ingest(context.Background(), text, DocumentMeta{Filename: "tiny.txt"}, "alice")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Text != text {
		t.Fatalf("expected one chunk equal to the input, got %v", chunks)
	}

	completer := &fakeCompleter{
		completeFn: func(model, system, user string) (*ai.Completion, error) {
			if model == "rewrite-model" {
				return stopCompletion("what does the tiny document contain"), nil
			}
			if !strings.Contains(system, text) {
				t.Errorf("synthesis context missing the ingested chunk")
			}
			return stopCompletion("It contains fifty x characters."), nil
		},
	}
	rag := NewRAGService(cfg, embedder, completer, index)

	result := rag.Answer(context.Background(), "what is in the document?", "alice", 0)
	if result.Answer != "It contains fifty x characters." {
		t.Fatalf("Answer = %q", result.Answer)
	}
	if len(result.Sources) == 0 || result.Sources[0] != text {
		t.Fatalf("ingested chunk not top-ranked in sources: %v", result.Sources)
	}
	if index.lastSearch != "user_alice" {
		t.Fatalf("searched %q, want the ingesting tenant's collection", index.lastSearch)
	}
	if hit := index.points["user_alice"][0]; hit.Payload["doc_id"] != doc.ID.Hex() {
		t.Fatalf("retrieved point not linked to the ingested document")
	}
}

func TestAnswerSkipsHitsWithoutText(t *testing.T) {
	embedder := &fakeEmbedder{}
	index := newFakeIndex()
	index.searchHits = []vectorstore.ScoredPoint{
		{Score: 0.9, Payload: map[string]any{"doc_id": "x"}},
		{Score: 0.8, Payload: map[string]any{"text": "usable chunk"}},
		{Score: 0.7, Payload: nil},
	}
	completer := &fakeCompleter{
		completeFn: func(model, system, user string) (*ai.Completion, error) {
			return stopCompletion("answer"), nil
		},
	}
	svc := NewRAGService(ragConfig(), embedder, completer, index)

	result := svc.Answer(context.Background(), "question", "alice", 0)
	if len(result.Sources) != 1 || result.Sources[0] != "usable chunk" {
		t.Fatalf("Sources = %v, want only the usable chunk", result.Sources)
	}
}
