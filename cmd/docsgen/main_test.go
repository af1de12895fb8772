package main

import (
	"bytes"
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseSource(t *testing.T, src string) []errorDoc {
	t.Helper()
	f, err := parser.ParseFile(token.NewFileSet(), "errors.go", src, 0)
	require.NoError(t, err)
	docs, err := collectErrors(f)
	require.NoError(t, err)
	return docs
}

func TestCollectErrors(t *testing.T) {
	t.Run("файл пакета apierrors", func(t *testing.T) {
		f, err := parser.ParseFile(token.NewFileSet(), "../../internal/aiforms/apierrors/apierrors.go", nil, 0)
		require.NoError(t, err)

		docs, err := collectErrors(f)
		require.NoError(t, err)
		require.NotEmpty(t, docs)

		var found bool
		for _, d := range docs {
			if d.Name == "ErrTemplateNotFound" {
				found = true
				assert.Equal(t, 2001, d.Code)
				assert.Equal(t, "StatusNotFound", d.StatusName)
				assert.Equal(t, "template not found", d.Err)
			}
		}
		assert.True(t, found)
	})

	t.Run("статус по умолчанию и конкатенация", func(t *testing.T) {
		docs := parseSource(t, `package apierrors
var (
	ErrB = DefinedError{Code: 2, Err: "a" + "b"}
	ErrA = DefinedError{Code: 1, StatusCode: http.StatusConflict, Err: "x", RuErr: "да"}
	other = 5
)`)
		require.Len(t, docs, 2)
		assert.Equal(t, "ErrA", docs[0].Name)
		assert.Equal(t, "StatusConflict", docs[0].StatusName)
		assert.Equal(t, "StatusBadRequest", docs[1].StatusName)
		assert.Equal(t, "ab", docs[1].Err)
	})

	t.Run("повторяющийся код", func(t *testing.T) {
		f, err := parser.ParseFile(token.NewFileSet(), "errors.go", `package apierrors
var (
	ErrA = DefinedError{Code: 1, Err: "a"}
	ErrB = DefinedError{Code: 1, Err: "b"}
)`, 0)
		require.NoError(t, err)
		_, err = collectErrors(f)
		assert.ErrorContains(t, err, "ErrA and ErrB")
	})
}

func TestRender(t *testing.T) {
	docs := parseSource(t, `package apierrors
var (
	ErrA = DefinedError{Code: 1001, StatusCode: http.StatusUnauthorized, Err: "invalid credentials", RuErr: "Неверные данные"}
	ErrB = DefinedError{Code: 2001, StatusCode: http.StatusNotFound, Err: "template not found"}
)`)

	var buf bytes.Buffer
	require.NoError(t, render(&buf, docs))
	out := buf.String()

	assert.Contains(t, out, "# Перечень кодов ошибок")
	assert.Contains(t, out, "## Авторизация и сессии")
	assert.Contains(t, out, "## Шаблоны")
	assert.Contains(t, out, "401")
	assert.Contains(t, out, "`template not found`")
}
