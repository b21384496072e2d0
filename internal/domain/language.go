package domain

import (
	"path"
	"strings"
)

var languageByExt = map[string]string{
	".go":     "go",
	".ts":     "typescript",
	".tsx":    "typescript",
	".js":     "javascript",
	".jsx":    "javascript",
	".mjs":    "javascript",
	".cjs":    "javascript",
	".py":     "python",
	".rs":     "rust",
	".java":   "java",
	".kt":     "kotlin",
	".rb":     "ruby",
	".php":    "php",
	".cs":     "csharp",
	".c":      "c",
	".h":      "c",
	".cpp":    "cpp",
	".swift":  "swift",
	".sh":     "shell",
	".sql":    "sql",
	".proto":  "protobuf",
	".tf":     "terraform",
	".yaml":   "yaml",
	".yml":    "yaml",
	".toml":   "toml",
	".json":   "json",
	".md":     "markdown",
	".mdx":    "markdown",
	".html":   "html",
	".css":    "css",
	".scss":   "css",
	".vue":    "vue",
	".svelte": "svelte",
}

var languageByName = map[string]string{
	"dockerfile": "dockerfile",
	"makefile":   "makefile",
	"go.mod":     "go",
}

// DetectLanguage infers the language of a file from its name or extension.
func DetectLanguage(filePath string) string {
	base := strings.ToLower(path.Base(filePath))
	if lang, ok := languageByName[base]; ok {
		return lang
	}
	if lang, ok := languageByExt[path.Ext(base)]; ok {
		return lang
	}
	return "unknown"
}
