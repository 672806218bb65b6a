// Package translate renders user visible messages through an x/text
// message printer selected from the host locale.
package translate

import (
	"log"

	"github.com/jeandeaual/go-locale"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Fallback is used when the host reports no usable locale.
const Fallback = "en-US"

var (
	printer *message.Printer
	current language.Tag
)

func init() {
	locales, err := locale.GetLocales()
	if err != nil {
		log.Printf("ibm1130: locale: %v", err)
	}

	SetLanguage(locales...)
}

// SetLanguage selects the printer for the best match among languages.
// With no languages, Fallback is used.
func SetLanguage(languages ...string) {
	if len(languages) == 0 {
		languages = []string{Fallback}
	}

	current = message.MatchLanguage(languages...)
	printer = message.NewPrinter(current)
}

// Language returns the tag of the active printer.
func Language() language.Tag {
	return current
}

// From an en-US Sprintf() format, translate to string.
func From(key message.Reference, args ...any) string {
	return printer.Sprintf(key, args...)
}
