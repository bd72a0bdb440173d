// Package catalog holds the static course catalog and its positional lesson identity scheme.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed courses.yaml
var builtinCourses []byte

// ErrCourseNotFound is returned when a course id is not in the catalog.
var ErrCourseNotFound = errors.New("course not found")

// ErrLessonNotFound is returned when a lesson id does not resolve inside a course.
var ErrLessonNotFound = errors.New("lesson not found")

// Catalog is an immutable, ordered set of courses.
type Catalog struct {
	courses []Course
	byID    map[string]int
}

// Builtin returns the catalog shipped with the binary.
func Builtin() (*Catalog, error) {
	c, err := Parse(builtinCourses)
	if err != nil {
		return nil, fmt.Errorf("loading builtin catalog: %w", err)
	}
	return c, nil
}

// MustBuiltin is Builtin for tests and static initialization.
func MustBuiltin() *Catalog {
	c, err := Builtin()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	return New(doc.Courses)
}

// LoadDir reads every .yaml/.yml file under rootDir and merges their courses.
// Files are read in lexical order so course order is deterministic.
func LoadDir(rootDir string) (*Catalog, error) {
	var paths []string
	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking catalog dir: %w", err)
	}
	sort.Strings(paths)

	var courses []Course
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if err := Validate(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		var doc Document
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
		courses = append(courses, doc.Courses...)
	}

	c, err := New(courses)
	if err != nil {
		return nil, err
	}
	slog.Info("catalog loaded", "dir", rootDir, "courses", len(courses))
	return c, nil
}

// New builds a catalog from already decoded courses.
func New(courses []Course) (*Catalog, error) {
	c := &Catalog{
		courses: make([]Course, 0, len(courses)),
		byID:    make(map[string]int, len(courses)),
	}
	for _, course := range courses {
		if course.ID == "" {
			return nil, &ConfigurationError{Reason: "course without id"}
		}
		if _, dup := c.byID[course.ID]; dup {
			return nil, &ConfigurationError{CourseID: course.ID, Reason: "duplicate course id"}
		}
		for i, m := range course.Modules {
			if len(m.Topics) == 0 {
				return nil, &ConfigurationError{
					CourseID: course.ID,
					Reason:   fmt.Sprintf("module %d (%s) has no topics", i, m.Name),
				}
			}
		}
		c.byID[course.ID] = len(c.courses)
		c.courses = append(c.courses, course)
	}
	return c, nil
}

// ListCourses returns the courses in catalog order.
func (c *Catalog) ListCourses() []Course {
	out := make([]Course, len(c.courses))
	copy(out, c.courses)
	return out
}

// Course returns a course by id.
func (c *Catalog) Course(id string) (Course, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Course{}, false
	}
	return c.courses[i], true
}

// Lesson resolves a positional lesson id inside a course.
func (c *Catalog) Lesson(courseID, lessonID string) (Lesson, error) {
	course, ok := c.Course(courseID)
	if !ok {
		return Lesson{}, fmt.Errorf("%w: %s", ErrCourseNotFound, courseID)
	}
	mi, ti, err := ParseLessonID(lessonID)
	if err != nil {
		return Lesson{}, fmt.Errorf("%w: %v", ErrLessonNotFound, err)
	}
	if mi >= len(course.Modules) || ti >= len(course.Modules[mi].Topics) {
		return Lesson{}, fmt.Errorf("%w: %s in %s", ErrLessonNotFound, lessonID, courseID)
	}
	m := course.Modules[mi]
	return Lesson{
		CourseID:    courseID,
		ModuleIndex: mi,
		TopicIndex:  ti,
		Module:      m.Name,
		Topic:       m.Topics[ti],
	}, nil
}

// Lessons enumerates every lesson of a course in module/topic order.
func (c *Catalog) Lessons(courseID string) []Lesson {
	course, ok := c.Course(courseID)
	if !ok {
		return nil
	}
	lessons := make([]Lesson, 0, LessonCount(course))
	for mi, m := range course.Modules {
		for ti, topic := range m.Topics {
			lessons = append(lessons, Lesson{
				CourseID:    courseID,
				ModuleIndex: mi,
				TopicIndex:  ti,
				Module:      m.Name,
				Topic:       topic,
			})
		}
	}
	return lessons
}
