package config

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// LanguageSuffix converts a BCP 47 tag ("en", "fr-CA") into the upper-case
// ISO 639-2 code used in cooked package names ("ENG", "FRA").
func LanguageSuffix(tag string) (string, error) {
	parsed, err := language.Parse(strings.TrimSpace(tag))
	if err != nil {
		return "", fmt.Errorf("invalid language %q: %w", tag, err)
	}
	base, confidence := parsed.Base()
	if confidence == language.No {
		return "", fmt.Errorf("language %q has no base language", tag)
	}
	code := base.ISO3()
	if code == "" || code == "und" {
		return "", fmt.Errorf("language %q has no ISO 639-2 code", tag)
	}
	return strings.ToUpper(code), nil
}
