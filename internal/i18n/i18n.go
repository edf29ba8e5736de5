package i18n

import (
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/iamwavecut/ngguard/resources"
)

const translationsFile = "i18n/translations.yml"

var state = struct {
	once            sync.Once
	mu              sync.RWMutex
	translations    map[string]map[string]string
	defaultLanguage string
}{
	defaultLanguage: "en",
}

func load() {
	state.translations = map[string]map[string]string{}
	content, err := resources.FS.ReadFile(translationsFile)
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load i18n")
		return
	}
	if err := yaml.Unmarshal(content, &state.translations); err != nil {
		log.WithField("error", err.Error()).Error("cant unmarshal i18n")
	}
}

// SetDefault sets the language used when a chat has none configured.
func SetDefault(lang string) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	state.defaultLanguage = lang
}

func Default() string {
	state.mu.RLock()
	defer state.mu.RUnlock()
	return state.defaultLanguage
}

// Get returns the translation of key, which is itself the English text.
func Get(key, lang string) string {
	lang = strings.ToUpper(lang)
	if lang == "" || lang == "EN" {
		return key
	}
	state.once.Do(load)
	if res, ok := state.translations[key][lang]; ok && res != "" {
		return res
	}
	log.WithField("key", key).Trace("no translation")
	return key
}
