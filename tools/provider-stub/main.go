package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

type meeting struct {
	ID        int64           `json:"id"`
	JoinURL   string          `json:"join_url"`
	Topic     string          `json:"topic"`
	StartTime string          `json:"start_time"`
	Duration  int             `json:"duration"`
	Timezone  string          `json:"timezone"`
	Settings  json.RawMessage `json:"settings,omitempty"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at,omitempty"`
}

type stats struct {
	Created  int64     `json:"created"`
	Updated  int64     `json:"updated"`
	Deleted  int64     `json:"deleted"`
	Meetings []meeting `json:"meetings"`
	Since    string    `json:"since"`
}

var (
	mu       sync.Mutex
	nextID   int64 = 81000000000
	meetings       = map[int64]*meeting{}
	created  int64
	updated  int64
	deleted  int64
	since    time.Time

	// failNext makes the next N calls answer 500, for exercising retries
	// and the circuit breaker.
	failNext int
)

func main() {
	since = time.Now().UTC()

	addr := ":8090"
	if v := os.Getenv("ADDR"); v != "" {
		addr = v
	}

	http.HandleFunc("/users/", usersHandler)
	http.HandleFunc("/meetings/", meetingHandler)
	http.HandleFunc("/stats", statsHandler)
	http.HandleFunc("/fail", failHandler)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	http.HandleFunc("/reset", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		meetings = map[int64]*meeting{}
		created, updated, deleted, failNext = 0, 0, 0, 0
		since = time.Now().UTC()
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "reset")
	})

	log.Printf("provider-stub listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}

// usersHandler serves POST /users/{userId}/meetings.
func usersHandler(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[2] != "meetings" {
		writeError(w, http.StatusNotFound, 1001, "user does not exist")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, 405, "method not allowed")
		return
	}
	if !authorized(w, r) || injectFailure(w) {
		return
	}

	var m meeting
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, 300, "invalid request body")
		return
	}
	if m.Topic == "" || m.StartTime == "" {
		writeError(w, http.StatusBadRequest, 300, "topic and start_time are required")
		return
	}

	mu.Lock()
	nextID++
	m.ID = nextID
	m.JoinURL = fmt.Sprintf("https://stub.local/j/%d", m.ID)
	m.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	meetings[m.ID] = &m
	created++
	mu.Unlock()

	log.Printf("meeting created #%d: %q at %s (%s)", m.ID, m.Topic, m.StartTime, m.Timezone)
	writeJSON(w, http.StatusCreated, m)
}

// meetingHandler serves PATCH and DELETE /meetings/{id}.
func meetingHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/meetings/"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, 3001, "meeting does not exist")
		return
	}
	if !authorized(w, r) || injectFailure(w) {
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var patch meeting
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, 300, "invalid request body")
			return
		}
		mu.Lock()
		m, ok := meetings[id]
		if ok {
			if patch.Topic != "" {
				m.Topic = patch.Topic
			}
			if patch.StartTime != "" {
				m.StartTime = patch.StartTime
			}
			if patch.Duration != 0 {
				m.Duration = patch.Duration
			}
			if patch.Timezone != "" {
				m.Timezone = patch.Timezone
			}
			m.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
			updated++
		}
		mu.Unlock()
		if !ok {
			writeError(w, http.StatusNotFound, 3001, "meeting does not exist")
			return
		}
		log.Printf("meeting updated #%d: %q at %s", id, patch.Topic, patch.StartTime)
		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
		mu.Lock()
		_, ok := meetings[id]
		if ok {
			delete(meetings, id)
			deleted++
		}
		mu.Unlock()
		if !ok {
			writeError(w, http.StatusNotFound, 3001, "meeting does not exist")
			return
		}
		log.Printf("meeting deleted #%d", id)
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, 405, "method not allowed")
	}
}

func authorized(w http.ResponseWriter, r *http.Request) bool {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		writeError(w, http.StatusUnauthorized, 124, "invalid access token")
		return false
	}
	return true
}

func injectFailure(w http.ResponseWriter) bool {
	mu.Lock()
	fail := failNext > 0
	if fail {
		failNext--
	}
	mu.Unlock()
	if fail {
		writeError(w, http.StatusInternalServerError, 500, "injected failure")
	}
	return fail
}

// failHandler sets how many upcoming calls fail: POST /fail?n=3.
func failHandler(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.URL.Query().Get("n"))
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, 300, "n must be a non-negative integer")
		return
	}
	mu.Lock()
	failNext = n
	mu.Unlock()
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"fail_next":%d}`, n)
}

func statsHandler(w http.ResponseWriter, _ *http.Request) {
	mu.Lock()
	s := stats{
		Created:  created,
		Updated:  updated,
		Deleted:  deleted,
		Meetings: make([]meeting, 0, len(meetings)),
		Since:    since.Format(time.RFC3339),
	}
	for _, m := range meetings {
		s.Meetings = append(s.Meetings, *m)
	}
	mu.Unlock()

	writeJSON(w, http.StatusOK, s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status, code int, message string) {
	writeJSON(w, status, map[string]any{"code": code, "message": message})
}
