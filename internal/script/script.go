// Package script is the gateway between logkeeper and user-supplied scripts.
//
// A Script is declared once (inline, from a file, or as a reference to a
// script declared elsewhere), registered in a Registry, and executed by name
// against a set of Bindings. The Registry dispatches on the script's language
// to an Engine registered for it; the rest of logkeeper only sees the opaque,
// fallible Execute call.
package script

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
)

// Languages understood by the engines that ship with logkeeper.
const (
	LanguageStarlark = "starlark"
	LanguageGo       = "go"
)

var (
	ErrNilScript       = errors.New("script is required")
	ErrMissingName     = errors.New("script name is required")
	ErrNotFound        = errors.New("script not found")
	ErrUnknownLanguage = errors.New("no engine registered for script language")
	ErrRefNotAllowed   = errors.New("a script reference cannot be registered")
	ErrNoResult        = errors.New("script did not assign a result")
)

// Script is a named unit of code run by an Engine.
type Script interface {
	Name() string
	Language() string
	Source() string
}

// Inline is a script whose body is given directly in configuration.
type Inline struct {
	name     string
	language string
	source   string
}

func NewInline(name, language, source string) *Inline {
	return &Inline{name: name, language: normalizeLanguage(language), source: source}
}

func (s *Inline) Name() string     { return s.name }
func (s *Inline) Language() string { return s.language }
func (s *Inline) Source() string   { return s.source }

// File is a script whose body was read from disk when it was declared.
type File struct {
	Inline
	path string
}

// NewFile reads path and returns the script. An empty name defaults to the
// file's path.
func NewFile(name, language, path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading script file %s", path)
	}
	if name == "" {
		name = path
	}
	return &File{
		Inline: Inline{name: name, language: normalizeLanguage(language), source: string(data)},
		path:   path,
	}, nil
}

func (s *File) Path() string { return s.path }

// Ref points at a script declared elsewhere in the configuration.
type Ref struct {
	name string
}

func NewRef(name string) *Ref { return &Ref{name: name} }

func (r *Ref) Name() string   { return r.name }
func (*Ref) Language() string { return "" }
func (*Ref) Source() string   { return "" }

// IsRef reports whether s only names another script.
func IsRef(s Script) bool {
	_, ok := s.(*Ref)
	return ok
}

func normalizeLanguage(l string) string {
	l = strings.ToLower(strings.TrimSpace(l))
	if l == "" {
		return LanguageStarlark
	}
	return l
}
