// Package i18n provides localized user-facing messages for error codes.
package i18n

import (
	"bytes"
	"strings"
	"text/template"

	"golang.org/x/text/language"
)

// Code is a machine-readable error code (duplicated from the errors package
// to avoid a cycle).
type Code = string

// BaseLocale is the canonical source locale for catalogs.
const BaseLocale = "en-US"

// Catalog maps error codes to message templates for a specific locale.
type Catalog struct {
	locale   string
	messages map[Code]string
}

var (
	// catalogs holds the registered catalogs in matcher order. The base
	// locale must come first so it wins ambiguous matches.
	catalogs = []*Catalog{enUSCatalog, ptBRCatalog}

	matcher = newMatcher(catalogs)
)

func newMatcher(cats []*Catalog) language.Matcher {
	tags := make([]language.Tag, 0, len(cats))
	for _, cat := range cats {
		tags = append(tags, language.MustParse(cat.locale))
	}
	return language.NewMatcher(tags)
}

// GetCatalog returns the catalog best matching the requested locale.
// Unknown or empty locales fall back to en-US.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		return catalogs[0]
	}
	_, index := language.MatchStrings(matcher, requested)
	if index < 0 || index >= len(catalogs) {
		return catalogs[0]
	}
	return catalogs[index]
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message template with the given metadata.
// Falls back to the error code itself if no template is found.
// Templates are always executed even with nil/empty metadata so that
// template variables without metadata render as empty.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	tmpl, ok := c.messages[code]
	if !ok {
		return code
	}

	if metadata == nil {
		metadata = map[string]string{}
	}

	t, err := template.New("msg").Parse(tmpl)
	if err != nil {
		return tmpl
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, metadata); err != nil {
		return tmpl
	}
	return buf.String()
}

// NewCatalog creates a catalog with the given locale and messages. It is
// intended for tests that need custom templates.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	cloned := make(map[Code]string, len(messages))
	for key, value := range messages {
		cloned[key] = value
	}
	return &Catalog{
		locale:   locale,
		messages: cloned,
	}
}
