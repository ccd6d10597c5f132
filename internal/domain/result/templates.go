package result

import "strings"

// ClassCategory groups classes that share a subject template.
type ClassCategory string

const (
	CategoryNursery      ClassCategory = "Nursery"
	CategoryKindergarten ClassCategory = "Kindergarten"
	CategoryPrimary      ClassCategory = "Primary"
)

// ClassOptions lists the classes offered by the school.
var ClassOptions = []string{
	"Nursery 1",
	"Nursery 2",
	"KG 1",
	"KG 2",
	"Primary 1",
	"Primary 2",
	"Primary 3",
	"Primary 4",
	"Primary 5",
	"Primary 6",
}

var subjectTemplates = map[ClassCategory][]string{
	CategoryNursery: {
		"Rhymes and Songs",
		"Letter Work",
		"Number Work",
		"Colouring",
		"Health Habits",
		"Social Habits",
	},
	CategoryKindergarten: {
		"English Language",
		"Mathematics",
		"Phonics",
		"Writing",
		"Health Science",
		"Creative Arts",
	},
	CategoryPrimary: {
		"English Language",
		"Mathematics",
		"Basic Science",
		"Social Studies",
		"Verbal Reasoning",
		"Quantitative Reasoning",
		"Computer Studies",
		"Christian Religious Studies",
		"Physical and Health Education",
		"Creative Arts",
		"Yoruba Language",
	},
}

// CategoryOf derives the category from a class name. Anything that is not
// a nursery or KG class is treated as primary.
func CategoryOf(class string) ClassCategory {
	switch {
	case strings.Contains(class, "Nursery"):
		return CategoryNursery
	case strings.Contains(class, "KG"):
		return CategoryKindergarten
	default:
		return CategoryPrimary
	}
}

// SubjectTemplate returns the default subject list for a class.
func SubjectTemplate(class string) []string {
	tmpl := subjectTemplates[CategoryOf(class)]
	out := make([]string, len(tmpl))
	copy(out, tmpl)
	return out
}

// IsKnownClass reports whether the class is one of ClassOptions.
func IsKnownClass(class string) bool {
	for _, c := range ClassOptions {
		if c == class {
			return true
		}
	}
	return false
}
