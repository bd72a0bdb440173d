package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// Course is a top-level catalog entry.
type Course struct {
	ID          string   `yaml:"id" json:"id"`
	Title       string   `yaml:"title" json:"title"`
	Difficulty  string   `yaml:"difficulty" json:"difficulty"`
	Duration    string   `yaml:"duration" json:"duration"`
	Lessons     int      `yaml:"lessons" json:"lessons"` // advertised total, used as the progress denominator
	Description string   `yaml:"description" json:"description"`
	Modules     []Module `yaml:"modules" json:"modules"`
}

// Module is an ordered group of topics. Each topic is one lesson.
type Module struct {
	Name     string   `yaml:"name" json:"name"`
	Topics   []string `yaml:"topics" json:"topics"`
	Lessons  int      `yaml:"lessons" json:"lessons"`
	PDFURL   string   `yaml:"pdf_url,omitempty" json:"pdf_url,omitempty"`
	VideoURL string   `yaml:"video_url,omitempty" json:"video_url,omitempty"`
}

// Document is the on-disk shape of a catalog file.
type Document struct {
	Courses []Course `yaml:"courses"`
}

// Lesson identifies a single topic by its position inside a course.
//
// Identity is positional: reordering modules or topics in the catalog
// remaps already recorded progress onto different lessons.
type Lesson struct {
	CourseID    string
	ModuleIndex int
	TopicIndex  int
	Module      string
	Topic       string
}

// ID returns the lesson id stored in progress records ("module-topic").
func (l Lesson) ID() string {
	return LessonID(l.ModuleIndex, l.TopicIndex)
}

// LessonID builds the positional lesson id for a module and topic index.
func LessonID(moduleIndex, topicIndex int) string {
	return fmt.Sprintf("%d-%d", moduleIndex, topicIndex)
}

// ParseLessonID splits a positional lesson id back into its indices.
// Only the form produced by LessonID is accepted, so "0-02" is rejected.
func ParseLessonID(id string) (moduleIndex, topicIndex int, err error) {
	m, t, ok := strings.Cut(id, "-")
	if !ok {
		return 0, 0, fmt.Errorf("invalid lesson id %q", id)
	}
	if moduleIndex, err = parseIndex(m); err != nil {
		return 0, 0, fmt.Errorf("invalid lesson id %q: %w", id, err)
	}
	if topicIndex, err = parseIndex(t); err != nil {
		return 0, 0, fmt.Errorf("invalid lesson id %q: %w", id, err)
	}
	return moduleIndex, topicIndex, nil
}

func parseIndex(s string) (int, error) {
	if s == "" || s[0] == '+' || s[0] == '-' {
		return 0, fmt.Errorf("bad index %q", s)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if strconv.Itoa(n) != s {
		return 0, fmt.Errorf("non-canonical index %q", s)
	}
	return n, nil
}

// LessonCount returns the number of trackable lessons (topics) in the course.
func LessonCount(c Course) int {
	total := 0
	for _, m := range c.Modules {
		total += len(m.Topics)
	}
	return total
}

// TotalLessons returns the denominator used for progress percentages.
// The advertised lesson total wins; courses without one fall back to
// the number of trackable topics.
func (c Course) TotalLessons() int {
	if c.Lessons > 0 {
		return c.Lessons
	}
	return LessonCount(c)
}
