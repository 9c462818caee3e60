package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakeQdrant serves just enough of the Qdrant REST surface for the client.
type fakeQdrant struct {
	collections map[string]int // name -> dimension
	upserts     map[string][]Point
	creates     int

	// conflictCreates makes the create PUT for a name answer 409 even though
	// the GET reported 404, as if a concurrent caller created it in between.
	conflictCreates map[string]bool
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{
		collections:     make(map[string]int),
		upserts:         make(map[string][]Point),
		conflictCreates: make(map[string]bool),
	}
}

func (f *fakeQdrant) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /collections/{name}", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := f.collections[r.PathValue("name")]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("PUT /collections/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if _, ok := f.collections[name]; ok || f.conflictCreates[name] {
			w.WriteHeader(http.StatusConflict)
			return
		}
		var body struct {
			Vectors struct {
				Size int `json:"size"`
			} `json:"vectors"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.collections[name] = body.Vectors.Size
		f.creates++
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("PUT /collections/{name}/points", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if _, ok := f.collections[name]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body struct {
			Points []Point `json:"points"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.upserts[name] = append(f.upserts[name], body.Points...)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /collections/{name}/points/search", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if _, ok := f.collections[name]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		points := f.upserts[name]
		results := make([]map[string]any, 0, len(points))
		for i, p := range points {
			results = append(results, map[string]any{
				"id":      p.ID,
				"score":   1.0 - float64(i)*0.1,
				"payload": p.Payload,
			})
		}
		json.NewEncoder(w).Encode(map[string]any{"result": results})
	})
	return mux
}

func TestEnsureCollectionIdempotent(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := NewClient(srv.URL, "")
	ctx := context.Background()

	if err := c.EnsureCollection(ctx, "user_t1", 768); err != nil {
		t.Fatalf("first ensure failed: %v", err)
	}
	if err := c.EnsureCollection(ctx, "user_t1", 768); err != nil {
		t.Fatalf("second ensure failed: %v", err)
	}
	if fake.creates != 1 {
		t.Fatalf("expected exactly 1 create, got %d", fake.creates)
	}
	if dim := fake.collections["user_t1"]; dim != 768 {
		t.Fatalf("collection dimension = %d, want 768", dim)
	}
}

func TestEnsureCollectionToleratesCreateRace(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	// Losing a create race: the GET reports the collection missing, but by
	// the time the create PUT arrives another caller has made it, so the
	// PUT answers 409. The loser must still treat the collection as ready.
	fake.conflictCreates["user_t2"] = true

	c := NewClient(srv.URL, "")
	if err := c.EnsureCollection(context.Background(), "user_t2", 768); err != nil {
		t.Fatalf("ensure losing the create race: %v", err)
	}
	if fake.creates != 0 {
		t.Fatalf("conflicted create must not register as a create, got %d", fake.creates)
	}
}

func TestUpsertAndSearch(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := NewClient(srv.URL, "")
	ctx := context.Background()

	if err := c.EnsureCollection(ctx, "user_t1", 3); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	points := []Point{
		{ID: "p1", Vector: []float32{1, 0, 0}, Payload: map[string]any{"text": "first chunk", "doc_id": "d1"}},
		{ID: "p2", Vector: []float32{0, 1, 0}, Payload: map[string]any{"text": "second chunk", "doc_id": "d1"}},
	}
	if err := c.Upsert(ctx, "user_t1", points); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	hits, err := c.Search(ctx, "user_t1", []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Score < hits[1].Score {
		t.Fatal("hits not ordered by score descending")
	}
	if hits[0].Payload["text"] != "first chunk" {
		t.Fatalf("unexpected payload: %v", hits[0].Payload)
	}
}

func TestUpsertEmptyBatchIsNoop(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "")
	if err := c.Upsert(context.Background(), "user_t1", nil); err != nil {
		t.Fatalf("empty upsert should not touch the network: %v", err)
	}
}

func TestSearchMissingCollection(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.Search(context.Background(), "user_nobody", []float32{1}, 5)
	if !errors.Is(err, ErrCollectionNotFound) {
		t.Fatalf("expected ErrCollectionNotFound, got %v", err)
	}
}
