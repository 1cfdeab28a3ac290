package chat

import "strings"

var languages = map[string]string{
	"js":   "JavaScript",
	"ts":   "TypeScript",
	"py":   "Python",
	"cs":   "C#",
	"java": "Java",
	"go":   "Go",
	"rb":   "Ruby",
	"php":  "PHP",
	"cpp":  "C++",
	"c":    "C",
}

var frameworks = map[string]string{
	"JavaScript": "Jest",
	"TypeScript": "Jest",
	"Python":     "pytest",
	"C#":         "xUnit",
	"Java":       "JUnit",
	"Go":         "testing",
	"Ruby":       "RSpec",
	"PHP":        "PHPUnit",
}

// LanguageFor maps a file extension (no dot) to a language name, or "Unknown".
func LanguageFor(ext string) string {
	if l, ok := languages[strings.ToLower(ext)]; ok {
		return l
	}
	return "Unknown"
}

// FrameworkFor maps a language to its usual test framework, or "standard".
func FrameworkFor(language string) string {
	if f, ok := frameworks[language]; ok {
		return f
	}
	return "standard"
}
