// Package i18n resolves the display text of translated columns and compares
// display strings with locale collation.
package i18n

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// DefaultLocale is used when no locale is configured.
const DefaultLocale = "en"

// Translator resolves stored source text into its display form.
type Translator interface {
	Translate(text string) string
	Language() language.Tag
}

// ParseLocale parses a BCP 47 tag. An empty string yields DefaultLocale.
func ParseLocale(s string) (language.Tag, error) {
	if strings.TrimSpace(s) == "" {
		s = DefaultLocale
	}
	tag, err := language.Parse(s)
	if err != nil {
		return language.Und, fmt.Errorf("i18n: invalid locale %q: %w", s, err)
	}
	return tag, nil
}

type nop struct {
	tag language.Tag
}

// Nop returns a translator that displays source text unchanged.
func Nop(tag language.Tag) Translator {
	return nop{tag: tag}
}

func (n nop) Translate(text string) string { return text }
func (n nop) Language() language.Tag       { return n.tag }

// Catalog holds display translations for several locales.
type Catalog struct {
	builder *catalog.Builder
	tags    map[language.Tag]struct{}
}

// NewCatalog returns an empty catalog falling back to DefaultLocale.
func NewCatalog() *Catalog {
	return &Catalog{
		builder: catalog.NewBuilder(catalog.Fallback(language.Make(DefaultLocale))),
		tags:    make(map[language.Tag]struct{}),
	}
}

// Set registers the display text of source in locale tag.
func (c *Catalog) Set(tag language.Tag, source, display string) error {
	if err := c.builder.SetString(tag, source, escape(display)); err != nil {
		return fmt.Errorf("i18n: set %s %q: %w", tag, source, err)
	}
	c.tags[tag] = struct{}{}
	return nil
}

// Languages lists the locales with at least one entry.
func (c *Catalog) Languages() []language.Tag {
	out := make([]language.Tag, 0, len(c.tags))
	for tag := range c.tags {
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Translator returns a translator for tag. Text without an entry in the
// best matching locale is displayed unchanged.
func (c *Catalog) Translator(tag language.Tag) Translator {
	return &catalogTranslator{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(c.builder)),
	}
}

// catalogTranslator serializes access to its printer, which is not safe for
// concurrent use.
type catalogTranslator struct {
	tag     language.Tag
	mu      sync.Mutex
	printer *message.Printer
}

func (t *catalogTranslator) Translate(text string) string {
	if text == "" {
		return ""
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.printer.Sprintf(message.Key(text, escape(text)))
}

func (t *catalogTranslator) Language() language.Tag { return t.tag }

// escape keeps display text from being read as a format string.
func escape(s string) string {
	return strings.ReplaceAll(s, "%", "%%")
}

// LoadCatalog reads a YAML document mapping locales to source/display
// pairs:
//
//	fr:
//	  US Dollar: Dollar américain
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var doc map[string]map[string]string
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("i18n: decode catalog: %w", err)
	}

	c := NewCatalog()
	for locale, entries := range doc {
		tag, err := ParseLocale(locale)
		if err != nil {
			return nil, err
		}
		for source, display := range entries {
			if err := c.Set(tag, source, display); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}
