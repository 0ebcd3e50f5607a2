package detect

import (
	"path"
	"strings"
)

// Language tags understood by the parser set. Anything else maps to "other".
const (
	LangPython     = "python"
	LangJavaScript = "javascript"
	LangTypeScript = "typescript"
	LangJava       = "java"
	LangGo         = "go"
	LangSQL        = "sql"
	LangMarkdown   = "markdown"
	LangYAML       = "yaml"
	LangJSON       = "json"
	LangShell      = "shell"
	LangOther      = "other"
)

var extLanguages = map[string]string{
	".py":   LangPython,
	".js":   LangJavaScript,
	".jsx":  LangJavaScript,
	".mjs":  LangJavaScript,
	".cjs":  LangJavaScript,
	".ts":   LangTypeScript,
	".tsx":  LangTypeScript,
	".java": LangJava,
	".go":   LangGo,
	".sql":  LangSQL,
	".md":   LangMarkdown,
	".yaml": LangYAML,
	".yml":  LangYAML,
	".json": LangJSON,
	".sh":   LangShell,
	".bash": LangShell,
}

// DetectLanguage maps a file path to a language tag by extension.
func DetectLanguage(p string) string {
	ext := strings.ToLower(path.Ext(p))
	if lang, ok := extLanguages[ext]; ok {
		return lang
	}
	return LangOther
}

// IsDocLanguage reports whether the language is documentation rather than
// source. Doc-only additions never raise severity above PATCH.
func IsDocLanguage(lang string) bool {
	return lang == LangMarkdown
}
