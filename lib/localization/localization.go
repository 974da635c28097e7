// Package localization translates the public messages codegate sends to
// callers whose challenge failed.
package localization

import (
	"embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/TecharoHQ/codegate/lib/challenge"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

type LocalizationService struct {
	bundle *i18n.Bundle
}

var (
	globalService *LocalizationService
	once          sync.Once
)

// NewLocalizationService returns the process-wide service. Locale files that
// fail to parse are logged and skipped.
func NewLocalizationService() *LocalizationService {
	once.Do(func() {
		bundle := i18n.NewBundle(language.English)
		bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

		entries, err := localeFS.ReadDir("locales")
		if err != nil {
			slog.Error("can't read embedded locales", "err", err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") || entry.Name() == "manifest.json" {
				continue
			}

			if _, err := bundle.LoadMessageFileFS(localeFS, "locales/"+entry.Name()); err != nil {
				slog.Error("can't load locale", "file", entry.Name(), "err", err)
			}
		}

		globalService = &LocalizationService{bundle: bundle}
	})

	return globalService
}

func (ls *LocalizationService) GetLocalizer(lang string) *i18n.Localizer {
	return i18n.NewLocalizer(ls.bundle, lang)
}

// GetLocalizerFromRequest picks the language from Accept-Language, falling
// back to English.
func (ls *LocalizationService) GetLocalizerFromRequest(r *http.Request) *i18n.Localizer {
	return i18n.NewLocalizer(ls.bundle, r.Header.Get("Accept-Language"), "en")
}

// SimpleLocalizer wraps i18n.Localizer with a more convenient API
type SimpleLocalizer struct {
	Localizer *i18n.Localizer
}

// T localizes messageID, returning the ID itself when no translation exists.
func (sl *SimpleLocalizer) T(messageID string) string {
	result, err := sl.Localizer.Localize(&i18n.LocalizeConfig{MessageID: messageID})
	if err != nil {
		return messageID
	}
	return result
}

// Kind returns the public message for a failure kind.
func (sl *SimpleLocalizer) Kind(kind challenge.Kind) string {
	return sl.T("error_" + string(kind))
}

// GetLocalizer creates a localizer based on the request's Accept-Language header
func GetLocalizer(r *http.Request) *SimpleLocalizer {
	localizer := NewLocalizationService().GetLocalizerFromRequest(r)
	return &SimpleLocalizer{Localizer: localizer}
}
