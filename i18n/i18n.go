// Package i18n translates mmlocalizer's own CLI messages.
//
// Catalogs are embedded from locales/{lang}/LC_MESSAGES/mmlocalizer.po and
// read through gotext. Call Init once at startup; T and N pass strings
// through unchanged until then.
package i18n

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/leonelquinteros/gotext"
)

//go:embed all:locales
var locales embed.FS

const domain = "mmlocalizer"

var (
	po   *gotext.Locale
	lang string
)

// Init loads the catalog for language, or for the language detected from
// LANGUAGE, LC_ALL, LC_MESSAGES and LANG when language is empty.
func Init(language string) {
	if language == "" {
		language = detectLanguage()
	}
	lang = language

	po = gotext.NewLocaleFSWithPath(language, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
}

// Lang returns the language passed to or detected by Init.
func Lang() string {
	return lang
}

// T translates msgid, returning it unchanged when no translation exists.
func T(msgid string, vars ...interface{}) string {
	if po == nil {
		return sprintf(msgid, vars...)
	}
	return po.Get(msgid, vars...)
}

// N translates a message with plural forms.
func N(singular, plural string, n int, vars ...interface{}) string {
	if po == nil {
		if n == 1 {
			return sprintf(singular, vars...)
		}
		return sprintf(plural, vars...)
	}
	return po.GetN(singular, plural, n, vars...)
}

func sprintf(format string, vars ...interface{}) string {
	if len(vars) == 0 {
		return format
	}
	return fmt.Sprintf(format, vars...)
}

// detectLanguage follows the GNU gettext variable priority.
func detectLanguage() string {
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(env)
		if val == "" {
			continue
		}
		if env == "LANGUAGE" {
			val = strings.SplitN(val, ":", 2)[0]
		}
		if idx := strings.IndexByte(val, '.'); idx >= 0 {
			val = val[:idx]
		}
		if val == "C" || val == "POSIX" || val == "" {
			continue
		}
		return val
	}
	return "en"
}
