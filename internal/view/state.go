// Package view holds the per-session UI state and the view models built from
// the catalog and the confirmed completion state.
//
// State changes only through Reduce. The package owns no completion data; it
// reads it from a ProgressReader on every render.
package view

import (
	"errors"
	"fmt"

	"github.com/p-n-ai/pai-courses/internal/catalog"
)

// Section is a top-level page.
type Section string

const (
	SectionHome    Section = "home"
	SectionCourses Section = "courses"
	SectionAbout   Section = "about"
)

// Valid reports whether s names a known section.
func (s Section) Valid() bool {
	switch s {
	case SectionHome, SectionCourses, SectionAbout:
		return true
	}
	return false
}

// ActionType names a state transition.
type ActionType string

const (
	ActionNavigate      ActionType = "navigate"
	ActionOpenCourse    ActionType = "open_course"
	ActionCloseCourse   ActionType = "close_course"
	ActionToggleMenu    ActionType = "toggle_menu"
	ActionLessonToggled ActionType = "lesson_toggled"
)

var (
	ErrUnknownAction  = errors.New("unknown action")
	ErrUnknownSection = errors.New("unknown section")
)

// Toggled records the outcome of the last lesson toggle.
type Toggled struct {
	CourseID  string `json:"course_id"`
	LessonID  string `json:"lesson_id"`
	Completed bool   `json:"completed"`
}

// State is the serializable UI state of one session.
type State struct {
	Section        Section  `json:"section"`
	OpenCourseID   string   `json:"open_course_id,omitempty"`
	MobileMenuOpen bool     `json:"mobile_menu_open"`
	LastToggled    *Toggled `json:"last_toggled,omitempty"`
}

// Action is a request to change State.
type Action struct {
	Type      ActionType `json:"type"`
	Section   Section    `json:"section,omitempty"`
	CourseID  string     `json:"course_id,omitempty"`
	LessonID  string     `json:"lesson_id,omitempty"`
	Completed bool       `json:"completed,omitempty"`
}

// Initial returns the state of a fresh session.
func Initial() State {
	return State{Section: SectionHome}
}

// Reduce applies a to s and returns the new state. Course and lesson
// references are checked against cat. On error s is returned unchanged.
func Reduce(cat *catalog.Catalog, s State, a Action) (State, error) {
	next := s
	switch a.Type {
	case ActionNavigate:
		if !a.Section.Valid() {
			return s, fmt.Errorf("%w: %q", ErrUnknownSection, a.Section)
		}
		next.Section = a.Section
		next.MobileMenuOpen = false
		// The course detail is shown on the courses page only.
		if a.Section != SectionCourses {
			next.OpenCourseID = ""
		}

	case ActionOpenCourse:
		if _, ok := cat.Course(a.CourseID); !ok {
			return s, fmt.Errorf("%w: %s", catalog.ErrCourseNotFound, a.CourseID)
		}
		next.Section = SectionCourses
		next.OpenCourseID = a.CourseID

	case ActionCloseCourse:
		next.OpenCourseID = ""

	case ActionToggleMenu:
		next.MobileMenuOpen = !s.MobileMenuOpen

	case ActionLessonToggled:
		if _, err := cat.Lesson(a.CourseID, a.LessonID); err != nil {
			return s, err
		}
		next.LastToggled = &Toggled{
			CourseID:  a.CourseID,
			LessonID:  a.LessonID,
			Completed: a.Completed,
		}

	default:
		return s, fmt.Errorf("%w: %q", ErrUnknownAction, a.Type)
	}
	return next, nil
}
