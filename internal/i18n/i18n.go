// Package i18n localizes user-facing strings. Message catalogs are embedded
// JSON files keyed by message id; Persian is the deployment default and
// English the fallback.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Translator resolves message ids against the embedded catalogs.
type Translator struct {
	bundle *goi18n.Bundle
}

// New loads the embedded catalogs. Adding a language means dropping a new
// JSON file into locales/ and listing it here.
func New() (*Translator, error) {
	bundle := goi18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	for _, name := range []string{"locales/en.json", "locales/fa.json"} {
		if _, err := bundle.LoadMessageFileFS(localeFS, name); err != nil {
			return nil, fmt.Errorf("load locale %s: %w", name, err)
		}
	}

	return &Translator{bundle: bundle}, nil
}

// T renders a message in the given language. Unknown ids come back verbatim
// so a missing translation never breaks a reply.
func (t *Translator) T(lang, id string, data map[string]any) string {
	loc := goi18n.NewLocalizer(t.bundle, lang)
	msg, err := loc.Localize(&goi18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
	if err != nil {
		return id
	}
	return msg
}
