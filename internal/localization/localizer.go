// Package localization serves the bot's interface strings from embedded YAML catalogs.
package localization

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localesFS embed.FS

// Localizer looks up catalog strings by language with a default-language fallback.
type Localizer struct {
	catalogs map[string]map[string]string
	fallback string
}

// New loads every embedded catalog. defaultLanguage must be one of them.
func New(defaultLanguage string) (*Localizer, error) {
	entries, err := localesFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales: %w", err)
	}

	catalogs := make(map[string]map[string]string, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		raw, err := localesFS.ReadFile(path.Join("locales", name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var catalog map[string]string
		if err := yaml.Unmarshal(raw, &catalog); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		catalogs[strings.TrimSuffix(name, path.Ext(name))] = catalog
	}

	if _, ok := catalogs[defaultLanguage]; !ok {
		return nil, fmt.Errorf("no catalog for default language %q", defaultLanguage)
	}
	return &Localizer{catalogs: catalogs, fallback: defaultLanguage}, nil
}

// T renders key in lang. Args are applied with fmt.Sprintf. Unknown keys render as the key itself.
func (l *Localizer) T(lang, key string, args ...any) string {
	format, ok := l.catalogs[lang][key]
	if !ok {
		format, ok = l.catalogs[l.fallback][key]
	}
	if !ok {
		return key
	}
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// Languages returns the loaded language codes in stable order.
func (l *Localizer) Languages() []string {
	out := make([]string, 0, len(l.catalogs))
	for lang := range l.catalogs {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// Has reports whether a catalog exists for lang.
func (l *Localizer) Has(lang string) bool {
	_, ok := l.catalogs[lang]
	return ok
}

// Keys returns the keys of one catalog, used to check catalogs stay in sync.
func (l *Localizer) Keys(lang string) []string {
	out := make([]string, 0, len(l.catalogs[lang]))
	for key := range l.catalogs[lang] {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
