// Package signupclienttest provides an in-memory activities service for tests.
package signupclienttest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"

	"github.com/nomis52/signup/catalog"
)

// Server is an httptest server speaking the activities API.
// It answers signup and deregister requests the way the real service does.
type Server struct {
	*httptest.Server

	mu               sync.Mutex
	activities       []catalog.Activity
	activitiesStatus int
	requests         []string
}

// Seed returns a small catalog in a fixed order.
func Seed() []catalog.Activity {
	return []catalog.Activity{
		{
			Name:            "Chess Club",
			Description:     "Learn strategies and compete in chess tournaments",
			Schedule:        "Fridays, 3:30 PM - 5:00 PM",
			MaxParticipants: 12,
			Participants:    []string{"michael@mergington.edu", "daniel@mergington.edu"},
		},
		{
			Name:            "Programming Class",
			Description:     "Learn programming fundamentals and build software projects",
			Schedule:        "Tuesdays and Thursdays, 3:30 PM - 4:30 PM",
			MaxParticipants: 20,
			Participants:    []string{"emma@mergington.edu", "sophia@mergington.edu"},
		},
		{
			Name:            "Go Club",
			Description:     "Master the ancient game of Go and compete with other players",
			Schedule:        "Saturdays, 2:00 PM - 4:00 PM",
			MaxParticipants: 1,
			Participants:    []string{"kevin@mergington.edu"},
		},
	}
}

// NewServer starts a server holding activities, or Seed() if none are given.
// The server is closed when the test ends.
func NewServer(t testing.TB, activities ...catalog.Activity) *Server {
	t.Helper()
	if len(activities) == 0 {
		activities = Seed()
	}
	s := &Server{activities: clone(activities)}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /activities", s.handleActivities)
	mux.HandleFunc("POST /activities/{name}/signup", s.handleSignup)
	mux.HandleFunc("POST /activities/{name}/deregister", s.handleDeregister)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// FailActivities makes GET /activities answer with status. Zero restores normal answers.
func (s *Server) FailActivities(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activitiesStatus = status
}

// Participants returns the participants of the named activity.
func (s *Server) Participants(name string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.find(name); i >= 0 {
		return slices.Clone(s.activities[i].Participants)
	}
	return nil
}

// Requests returns "METHOD path" for every request received so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(r)

	if s.activitiesStatus != 0 {
		writeJSON(w, s.activitiesStatus, map[string]string{"detail": "Internal Server Error"})
		return
	}

	cat, err := catalog.New(s.activities...)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(r)

	name, email := r.PathValue("name"), r.URL.Query().Get("email")
	i := s.find(name)
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Activity not found"})
		return
	}
	if slices.Contains(s.activities[i].Participants, email) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Student is already signed up"})
		return
	}
	s.activities[i].Participants = append(s.activities[i].Participants, email)
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Signed up %s for %s", email, name)})
}

func (s *Server) handleDeregister(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(r)

	name, email := r.PathValue("name"), r.URL.Query().Get("email")
	i := s.find(name)
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Activity not found"})
		return
	}
	idx := slices.Index(s.activities[i].Participants, email)
	if idx < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Student is not signed up for this activity"})
		return
	}
	s.activities[i].Participants = slices.Delete(s.activities[i].Participants, idx, idx+1)
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Deregistered %s from %s", email, name)})
}

func (s *Server) record(r *http.Request) {
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
}

func (s *Server) find(name string) int {
	return slices.IndexFunc(s.activities, func(a catalog.Activity) bool { return a.Name == name })
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func clone(activities []catalog.Activity) []catalog.Activity {
	out := make([]catalog.Activity, len(activities))
	for i, a := range activities {
		a.Participants = slices.Clone(a.Participants)
		out[i] = a
	}
	return out
}
