package document

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf16"
)

// LanguagePlainText is used when the extension is not recognised.
const LanguagePlainText = "plaintext"

var languagesByExt = map[string]string{
	".py":    "python",
	".pyi":   "python",
	".go":    "go",
	".js":    "javascript",
	".mjs":   "javascript",
	".jsx":   "javascriptreact",
	".ts":    "typescript",
	".tsx":   "typescriptreact",
	".java":  "java",
	".rb":    "ruby",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".sh":    "shellscript",
	".php":   "php",
	".kt":    "kotlin",
	".swift": "swift",
}

// Document is one source text under analysis. URI identifies it in the
// diagnostic store.
type Document struct {
	URI        string
	Path       string
	LanguageID string
	Text       string

	lines []string
}

// New builds a document from text already in memory.
func New(uri, path, languageID, text string) *Document {
	return &Document{
		URI:        uri,
		Path:       path,
		LanguageID: languageID,
		Text:       text,
		lines:      splitLines(text),
	}
}

// Load reads path from disk and detects its language from the extension.
func Load(path string) (*Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return New(FileURI(abs), abs, DetectLanguage(abs), string(data)), nil
}

// FromReader reads a document from r, e.g. stdin. An empty languageID is
// detected from name.
func FromReader(name string, r io.Reader, languageID string) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if languageID == "" {
		languageID = DetectLanguage(name)
	}
	return New("stdin://"+name, name, languageID, string(data)), nil
}

// FileURI converts an absolute path into a file:// URI.
func FileURI(abs string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String()
}

// DetectLanguage maps a file name onto an editor language id.
func DetectLanguage(name string) string {
	if lang, ok := languagesByExt[strings.ToLower(filepath.Ext(name))]; ok {
		return lang
	}
	return LanguagePlainText
}

// IsBlank reports whether the document has no non-whitespace content.
func (d *Document) IsBlank() bool {
	return strings.TrimFunc(d.Text, isSpace) == ""
}

// LineCount returns the number of lines. An empty text has one empty line,
// and a trailing newline opens a final empty line.
func (d *Document) LineCount() int {
	return len(d.lines)
}

// Line returns the text of the 0-based line i without its terminator.
func (d *Document) Line(i int) (string, bool) {
	if i < 0 || i >= len(d.lines) {
		return "", false
	}
	return d.lines[i], true
}

// FirstNonWhitespace returns the UTF-16 column of the first non-whitespace
// character of line, or 0 when the line is blank.
func FirstNonWhitespace(line string) int {
	col := 0
	for _, r := range line {
		if !isSpace(r) {
			return col
		}
		col += utf16Len(r)
	}
	return 0
}

// isSpace also counts the byte order mark, which editors treat as blank.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

// Length returns the UTF-16 length of line.
func Length(line string) int {
	n := 0
	for _, r := range line {
		n += utf16Len(r)
	}
	return n
}

func utf16Len(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}

// splitLines splits on \r\n, \n and \r.
func splitLines(text string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			lines = append(lines, text[start:i])
			start = i + 1
		case '\r':
			lines = append(lines, text[start:i])
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			start = i + 1
		}
	}
	return append(lines, text[start:])
}
