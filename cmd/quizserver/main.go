package main

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"quizengine"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

// Server exposes the quiz engine as a JSON API. The engine itself is
// stateless between calls, so the server only tracks cookie identity
// and per-session locks.
type Server struct {
	engine *quizengine.Engine
	db     *quizengine.SQLiteStore
	store  *sessions.CookieStore
	locks  sync.Map // session id -> *sync.Mutex
}

func init() {
	gob.Register([]string{})
}

func main() {
	if os.Getenv("QUIZ_VERBOSE") != "" {
		quizengine.SetVerbose(true)
	}

	// Get API key from environment
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Fatal("OPENAI_API_KEY environment variable is required")
	}

	dbPath := os.Getenv("QUIZ_DB")
	if dbPath == "" {
		dbPath = "./quizengine.db"
	}

	db, err := quizengine.OpenSQLiteStore(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	source := quizengine.NewOpenAISource(apiKey, os.Getenv("OPENAI_MODEL"))
	orch := quizengine.NewOrchestrator(source, nil, quizengine.DefaultGeneratorConfig())
	engine := quizengine.NewEngine(orch, db)

	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		secret = "quizengine-dev-secret"
	}

	server := &Server{
		engine: engine,
		db:     db,
		store:  sessions.NewCookieStore([]byte(secret)),
	}

	// Expire abandoned sessions once a day.
	go func() {
		for {
			time.Sleep(24 * time.Hour)
			n, err := db.CleanupExpired(context.Background(), 30*24*time.Hour)
			if err != nil {
				log.Printf("Session cleanup failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("Cleaned up %d expired sessions", n)
			}
		}
	}()

	http.HandleFunc("/sessions", server.handleSessions)
	http.HandleFunc("/sessions/", server.handleSession)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8180"
	}

	log.Printf("Starting server on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, nil))
}

// sessionLock returns the mutex serializing engine calls for one quiz
// session.
func (s *Server) sessionLock(sessionID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// userID returns the caller's cookie identity, creating one on first
// contact.
func (s *Server) userID(w http.ResponseWriter, r *http.Request) string {
	cookie, _ := s.store.Get(r, "quizengine")
	id, ok := cookie.Values["user_id"].(string)
	if !ok || id == "" {
		id = uuid.NewString()
		cookie.Values["user_id"] = id
		if err := cookie.Save(r, w); err != nil {
			log.Printf("Failed to save cookie: %v", err)
		}
	}
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, quizengine.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, quizengine.ErrValidation), errors.Is(err, quizengine.ErrConfiguration):
		status = http.StatusBadRequest
	case errors.Is(err, quizengine.ErrRestoration):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// handleSessions covers the collection: POST creates, GET lists.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreate(w, r)
	case http.MethodGet:
		s.handleList(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var cfg quizengine.SessionConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "Failed to parse request body", http.StatusBadRequest)
		return
	}
	cfg.Mode = quizengine.ModeFresh
	cfg.UserID = s.userID(w, r)

	sess, err := s.engine.Create(r.Context(), cfg)
	if err != nil {
		writeError(w, err)
		return
	}

	// Generation can take a while; run it in the background and let the
	// client poll GET /sessions/{id} until the status flips to active.
	go s.runInBackground(sess)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"session_id": sess.ID,
		"status":     sess.Status,
	})
}

func (s *Server) runInBackground(sess *quizengine.Session) {
	mu := s.sessionLock(sess.ID)
	mu.Lock()
	defer mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if _, err := s.engine.Run(ctx, sess); err != nil {
		log.Printf("Generation failed for session %s: %v", sess.ID, err)
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.db.List(r.Context(), s.userID(w, r), 0)
	if err != nil {
		writeError(w, err)
		return
	}
	if summaries == nil {
		summaries = []quizengine.SessionSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

// handleSession routes /sessions/{id} and /sessions/{id}/{action}.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	parts := strings.Split(path, "/")

	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	sessionID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.handleStatus(w, r, sessionID)
		case http.MethodDelete:
			s.handleDelete(w, r, sessionID)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}

	switch parts[1] {
	case "current":
		s.handleCurrent(w, r, sessionID)
	case "answer":
		s.handleAnswer(w, r, sessionID)
	case "results":
		s.handleResults(w, r, sessionID)
	case "pause":
		s.handlePause(w, r, sessionID)
	case "resume":
		s.handleUnpause(w, r, sessionID)
	case "restart":
		s.handleRestart(w, r, sessionID)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, sessionID string) {
	step, err := s.engine.Current(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"status":     step.Session.Status,
		"state":      step.State,
		"answered":   len(step.Session.Answers),
		"pool_size":  len(step.Session.ActivePool),
	})
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	step, err := s.engine.Current(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	if step.State == quizengine.StateGenerate {
		writeJSON(w, http.StatusAccepted, map[string]any{"status": quizengine.StatusGenerating})
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		SelectedIndices []int `json:"selected_choice_indices"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Failed to parse request body", http.StatusBadRequest)
		return
	}

	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	step, err := s.engine.Resume(r.Context(), sessionID, body.SelectedIndices)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request, sessionID string) {
	step, err := s.engine.Current(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	if step.Results == nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "session is not completed"})
		return
	}
	writeJSON(w, http.StatusOK, step.Results)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.engine.Pause(r.Context(), sessionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "status": quizengine.StatusPaused})
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	step, err := s.engine.Unpause(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

// handleRestart starts a new session reusing the questions of an old
// one, either the full set reshuffled or only the ones missed on first
// attempt.
func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Mode quizengine.SessionMode `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Failed to parse request body", http.StatusBadRequest)
		return
	}
	if body.Mode != quizengine.ModeRetrySame && body.Mode != quizengine.ModeRetryFailed {
		http.Error(w, "mode must be retry_same or retry_failed", http.StatusBadRequest)
		return
	}

	mu := s.sessionLock(sessionID)
	mu.Lock()
	prior, err := s.engine.Current(r.Context(), sessionID)
	mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}

	cfg := quizengine.SessionConfig{
		Topics:             prior.Session.Topics,
		TotalQuestions:     prior.Session.TotalQuestions,
		Difficulty:         prior.Session.Difficulty,
		Mode:               body.Mode,
		CopiesPerIncorrect: prior.Session.CopiesPerIncorrect,
		UserID:             s.userID(w, r),
	}

	sess, err := s.engine.CreateRetry(r.Context(), cfg, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	go s.runInBackground(sess)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"session_id": sess.ID,
		"status":     sess.Status,
		"mode":       body.Mode,
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, sessionID string) {
	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.db.Delete(r.Context(), sessionID); err != nil {
		writeError(w, err)
		return
	}
	s.locks.Delete(sessionID)
	w.WriteHeader(http.StatusNoContent)
}
