package notify

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var supported = []language.Tag{
	language.English,
	language.Malay,
}

var matcher = language.NewMatcher(supported)

func init() {
	set := func(tag language.Tag, texts map[Cause]string) {
		for cause, text := range texts {
			_ = message.SetString(tag, string(cause), text)
		}
	}
	set(language.English, map[Cause]string{
		CauseLessonCompleted: "Lesson completed!",
		CauseLessonReset:     "Lesson marked as incomplete",
		CauseWriteFailed:     "Failed to update progress",
		CauseFetchFailed:     "Could not load your progress",
	})
	set(language.Malay, map[Cause]string{
		CauseLessonCompleted: "Pelajaran selesai!",
		CauseLessonReset:     "Pelajaran ditanda belum selesai",
		CauseWriteFailed:     "Gagal mengemas kini kemajuan",
		CauseFetchFailed:     "Kemajuan anda tidak dapat dimuatkan",
	})
}

// Messages renders notification wording for one language.
type Messages struct {
	tag     language.Tag
	printer *message.Printer
}

// NewMessages picks the closest supported language for lang (BCP 47).
// Unknown or malformed tags fall back to English.
func NewMessages(lang string) *Messages {
	tag := language.English
	if t, err := language.Parse(lang); err == nil {
		_, idx, conf := matcher.Match(t)
		if conf != language.No {
			tag = supported[idx]
		}
	}
	return &Messages{tag: tag, printer: message.NewPrinter(tag)}
}

// Language returns the selected language tag.
func (m *Messages) Language() language.Tag {
	return m.tag
}

// Text returns the wording for a cause.
func (m *Messages) Text(c Cause) string {
	return m.printer.Sprintf(string(c))
}
