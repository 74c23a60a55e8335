package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
)

type followRequest struct {
	Target string `json:"target"`
}

// edgeStore keeps follow edges in memory, keyed by source feed.
type edgeStore struct {
	mu    sync.Mutex
	edges map[string][]string
}

func (s *edgeStore) add(source, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.edges[source] {
		if existing == target {
			return
		}
	}
	s.edges[source] = append(s.edges[source], target)
}

func (s *edgeStore) list(source string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.edges[source]...)
}

func main() {
	var (
		port    = flag.String("port", "9099", "port to listen on")
		verbose = flag.Bool("verbose", false, "log every follow request")
	)
	flag.Parse()

	store := &edgeStore{edges: make(map[string][]string)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /feeds/{group}/{id}/follows", func(w http.ResponseWriter, r *http.Request) {
		var req followRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Target == "" {
			http.Error(w, "invalid follow payload", http.StatusBadRequest)
			return
		}
		source := fmt.Sprintf("%s:%s", r.PathValue("group"), r.PathValue("id"))
		store.add(source, req.Target)
		if *verbose {
			log.Printf("follow %s -> %s", source, req.Target)
		}
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("GET /feeds/{group}/{id}/follows", func(w http.ResponseWriter, r *http.Request) {
		source := fmt.Sprintf("%s:%s", r.PathValue("group"), r.PathValue("id"))
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string][]string{"follows": store.list(source)}); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	addr := ":" + *port
	log.Printf("mock feed service listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
