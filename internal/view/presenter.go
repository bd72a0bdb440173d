package view

import (
	"fmt"

	"github.com/p-n-ai/pai-courses/internal/catalog"
)

// ProgressReader exposes the confirmed completion state of one user.
type ProgressReader interface {
	IsCompleted(courseID, lessonID string) bool
	CompletedCount(courseID string) int
	Progress(courseID string) int
}

// CourseCard is the summary shown in the course grid.
type CourseCard struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Difficulty  string `json:"difficulty"`
	Duration    string `json:"duration"`
	Lessons     int    `json:"lessons"`
	Description string `json:"description"`
	Completed   int    `json:"completed"`
	Progress    int    `json:"progress"`
}

// TopicView is one lesson row of the course detail.
type TopicView struct {
	LessonID  string `json:"lesson_id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// ModuleView is one module of the course detail.
type ModuleView struct {
	Name     string      `json:"name"`
	Lessons  int         `json:"lessons"`
	PDFURL   string      `json:"pdf_url,omitempty"`
	VideoURL string      `json:"video_url,omitempty"`
	Topics   []TopicView `json:"topics"`
}

// CourseDetail is the expanded view of a single course.
type CourseDetail struct {
	CourseCard
	Modules []ModuleView `json:"modules"`
}

// Stats is the summary shown on the home page.
type Stats struct {
	TotalLessons int `json:"total_lessons"`
	Paths        int `json:"paths"`
}

// Page is everything needed to render the current state.
type Page struct {
	State   State         `json:"state"`
	Stats   Stats         `json:"stats"`
	Courses []CourseCard  `json:"courses,omitempty"`
	Detail  *CourseDetail `json:"detail,omitempty"`
}

// Cards builds one card per course in catalog order.
func Cards(cat *catalog.Catalog, progress ProgressReader) []CourseCard {
	courses := cat.ListCourses()
	cards := make([]CourseCard, 0, len(courses))
	for _, c := range courses {
		cards = append(cards, card(c, progress))
	}
	return cards
}

// Detail builds the detail view of a course.
func Detail(cat *catalog.Catalog, progress ProgressReader, courseID string) (CourseDetail, error) {
	c, ok := cat.Course(courseID)
	if !ok {
		return CourseDetail{}, fmt.Errorf("%w: %s", catalog.ErrCourseNotFound, courseID)
	}

	detail := CourseDetail{
		CourseCard: card(c, progress),
		Modules:    make([]ModuleView, 0, len(c.Modules)),
	}
	for mi, m := range c.Modules {
		mv := ModuleView{
			Name:     m.Name,
			Lessons:  m.Lessons,
			PDFURL:   m.PDFURL,
			VideoURL: m.VideoURL,
			Topics:   make([]TopicView, 0, len(m.Topics)),
		}
		for ti, topic := range m.Topics {
			id := catalog.LessonID(mi, ti)
			mv.Topics = append(mv.Topics, TopicView{
				LessonID:  id,
				Title:     topic,
				Completed: progress.IsCompleted(c.ID, id),
			})
		}
		detail.Modules = append(detail.Modules, mv)
	}
	return detail, nil
}

// HomeStats sums the advertised lessons across the catalog.
func HomeStats(cat *catalog.Catalog) Stats {
	courses := cat.ListCourses()
	s := Stats{Paths: len(courses)}
	for _, c := range courses {
		s.TotalLessons += c.TotalLessons()
	}
	return s
}

// Render builds the page for s. Course cards are included on the courses
// section only, the detail only when a course is open.
func Render(cat *catalog.Catalog, progress ProgressReader, s State) (Page, error) {
	page := Page{State: s, Stats: HomeStats(cat)}
	if s.Section != SectionCourses {
		return page, nil
	}

	page.Courses = Cards(cat, progress)
	if s.OpenCourseID != "" {
		d, err := Detail(cat, progress, s.OpenCourseID)
		if err != nil {
			return Page{}, err
		}
		page.Detail = &d
	}
	return page, nil
}

func card(c catalog.Course, progress ProgressReader) CourseCard {
	return CourseCard{
		ID:          c.ID,
		Title:       c.Title,
		Difficulty:  c.Difficulty,
		Duration:    c.Duration,
		Lessons:     c.TotalLessons(),
		Description: c.Description,
		Completed:   progress.CompletedCount(c.ID),
		Progress:    progress.Progress(c.ID),
	}
}
