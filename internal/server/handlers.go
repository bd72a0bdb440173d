package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/p-n-ai/pai-courses/internal/auth"
	"github.com/p-n-ai/pai-courses/internal/progress"
	"github.com/p-n-ai/pai-courses/internal/session"
	"github.com/p-n-ai/pai-courses/internal/view"
)

const maxActionBody = 4 << 10

// sessionResponse describes the reconciler of the signed-in user.
type sessionResponse struct {
	UserID   string `json:"user_id"`
	State    string `json:"state"`
	Degraded bool   `json:"degraded"` // progress failed to load and shows as empty
}

func newSessionResponse(sess *session.Session) sessionResponse {
	r := sess.Reconciler()
	return sessionResponse{
		UserID:   sess.UserID(),
		State:    r.State().String(),
		Degraded: r.LoadError() != nil,
	}
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFrom(r.Context())
	sess, err := s.sessions.Open(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFrom(r.Context())
	s.sessions.Close(userID)
	w.WriteHeader(http.StatusNoContent)
}

// noProgress renders the catalog for a user without an open session.
type noProgress struct{}

func (noProgress) IsCompleted(string, string) bool { return false }
func (noProgress) CompletedCount(string) int       { return 0 }
func (noProgress) Progress(string) int             { return 0 }

func (s *Server) progressReader(r *http.Request) view.ProgressReader {
	sess, err := s.currentSession(r)
	if err != nil {
		return noProgress{}
	}
	return sess.Reconciler()
}

func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, view.Cards(s.catalog, s.progressReader(r)))
}

func (s *Server) handleCourse(w http.ResponseWriter, r *http.Request) {
	detail, err := view.Detail(s.catalog, s.progressReader(r), r.PathValue("courseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type toggleResponse struct {
	CourseID  string `json:"course_id"`
	LessonID  string `json:"lesson_id"`
	Completed bool   `json:"completed"`
	Progress  int    `json:"progress"`
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	sess, err := s.currentSession(r)
	if err != nil {
		writeError(w, err)
		return
	}

	courseID, lessonID := r.PathValue("courseID"), r.PathValue("lessonID")
	completed, err := sess.Toggle(r.Context(), courseID, lessonID)
	if err != nil {
		status, msg := statusFor(err)
		resp := errorResponse{Error: msg}
		if progress.IsWriteError(err) {
			// The confirmed state is unchanged; tell the client what it is.
			resp.Completed = &completed
		}
		writeJSON(w, status, resp)
		return
	}

	writeJSON(w, http.StatusOK, toggleResponse{
		CourseID:  courseID,
		LessonID:  lessonID,
		Completed: completed,
		Progress:  sess.Reconciler().Progress(courseID),
	})
}

type courseProgress struct {
	CourseID  string `json:"course_id"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Percent   int    `json:"percent"`
}

type progressResponse struct {
	sessionResponse
	Courses   []courseProgress `json:"courses"`
	Completed map[string]bool  `json:"completed"`
}

func (s *Server) progressSummary(sess *session.Session) progressResponse {
	rec := sess.Reconciler()
	resp := progressResponse{
		sessionResponse: newSessionResponse(sess),
		Completed:       rec.Snapshot(),
	}
	for _, c := range s.catalog.ListCourses() {
		resp.Courses = append(resp.Courses, courseProgress{
			CourseID:  c.ID,
			Completed: rec.CompletedCount(c.ID),
			Total:     c.TotalLessons(),
			Percent:   rec.Progress(c.ID),
		})
	}
	return resp
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	sess, err := s.currentSession(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.progressSummary(sess))
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	sess, err := s.currentSession(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := sess.Reconciler().Reload(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.progressSummary(sess))
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	sess, err := s.currentSession(r)
	if err != nil {
		writeError(w, err)
		return
	}
	page, err := sess.Page()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleViewAction(w http.ResponseWriter, r *http.Request) {
	sess, err := s.currentSession(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var action view.Action
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxActionBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&action); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid action: %v", err)})
		return
	}
	if action.Type == view.ActionLessonToggled {
		// Only a confirmed toggle may record this.
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "lesson_toggled is recorded by the toggle endpoint"})
		return
	}

	if _, err := sess.Apply(action); err != nil {
		writeError(w, err)
		return
	}
	page, err := sess.Page()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
