package document

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.py")
	require.NoError(t, os.WriteFile(path, []byte("print('hi'\n"), 0o644))

	doc, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "python", doc.LanguageID)
	assert.Equal(t, path, doc.Path)
	assert.True(t, strings.HasPrefix(doc.URI, "file://"))
	assert.True(t, strings.HasSuffix(doc.URI, "/main.py"))
	assert.Equal(t, 2, doc.LineCount())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.py"))
	assert.Error(t, err)

	_, err = Load(t.TempDir())
	assert.Error(t, err)
}

func TestFromReader(t *testing.T) {
	doc, err := FromReader("snippet.go", strings.NewReader("package main\n"), "")
	require.NoError(t, err)
	assert.Equal(t, "go", doc.LanguageID)
	assert.Equal(t, "stdin://snippet.go", doc.URI)

	doc, err = FromReader("-", strings.NewReader("x = 1"), "python")
	require.NoError(t, err)
	assert.Equal(t, "python", doc.LanguageID)
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "python", DetectLanguage("a/b/app.PY"))
	assert.Equal(t, "typescript", DetectLanguage("index.ts"))
	assert.Equal(t, LanguagePlainText, DetectLanguage("README"))
}

func TestIsBlank(t *testing.T) {
	assert.True(t, New("u", "p", "python", "").IsBlank())
	assert.True(t, New("u", "p", "python", " \n\t\r\n").IsBlank())
	assert.False(t, New("u", "p", "python", "  x").IsBlank())
	assert.True(t, New("u", "p", "python", "\uFEFF\n \n").IsBlank())
}

func TestLines(t *testing.T) {
	doc := New("u", "p", "python", "a\r\nb\rc\n\nd")

	require.Equal(t, 5, doc.LineCount())
	for i, want := range []string{"a", "b", "c", "", "d"} {
		got, ok := doc.Line(i)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}

	_, ok := doc.Line(5)
	assert.False(t, ok)
	_, ok = doc.Line(-1)
	assert.False(t, ok)
}

func TestColumns(t *testing.T) {
	tests := []struct {
		line      string
		wantFirst int
		wantLen   int
	}{
		{line: "print('hi'", wantFirst: 0, wantLen: 10},
		{line: "    return x", wantFirst: 4, wantLen: 12},
		{line: "\t\tpass", wantFirst: 2, wantLen: 6},
		{line: "   ", wantFirst: 0, wantLen: 3},
		{line: "", wantFirst: 0, wantLen: 0},
		{line: "  s = '😀'", wantFirst: 2, wantLen: 10},
		{line: "\uFEFFimport os", wantFirst: 1, wantLen: 10},
		{line: "\uFEFF", wantFirst: 0, wantLen: 1},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.wantFirst, FirstNonWhitespace(tt.line))
			assert.Equal(t, tt.wantLen, Length(tt.line))
		})
	}
}
