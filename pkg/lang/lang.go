// Package lang describes the patient-facing languages the interpreter supports.
package lang

import (
	"errors"
	"fmt"
	"strings"
)

// Pivot is the language every translation routes through.
const Pivot = "en"

// Gender selects one of a language's two synthesis voices.
type Gender string

const (
	Female Gender = "female"
	Male   Gender = "male"
)

// ParseGender accepts "female" or "male" in any case.
func ParseGender(s string) (Gender, error) {
	switch Gender(strings.ToLower(strings.TrimSpace(s))) {
	case Female:
		return Female, nil
	case Male:
		return Male, nil
	}
	return "", fmt.Errorf("lang: unknown voice gender %q", s)
}

// Voices holds the two synthesis voice identities of a language.
type Voices struct {
	Female string `yaml:"female" json:"female"`
	Male   string `yaml:"male" json:"male"`
}

// Language is one row of the language table.
type Language struct {
	Code           string `yaml:"code" json:"code"`
	Name           string `yaml:"name" json:"name"`
	NativeName     string `yaml:"native_name" json:"native_name"`
	SpeechLocale   string `yaml:"speech_locale" json:"speech_locale"`
	TranslatorCode string `yaml:"translator_code" json:"translator_code"`
	Voices         Voices `yaml:"voices" json:"voices"`
}

// Voice returns the voice identity for g, falling back to the female voice.
func (l Language) Voice(g Gender) string {
	if g == Male && l.Voices.Male != "" {
		return l.Voices.Male
	}
	return l.Voices.Female
}

// IsPivot reports whether no translation is needed for this language.
func (l Language) IsPivot() bool {
	return l.Code == Pivot
}

// Validate checks that every field needed by speech and translation is set.
func (l Language) Validate() error {
	switch {
	case l.Code == "":
		return errors.New("lang: code required")
	case l.SpeechLocale == "":
		return fmt.Errorf("lang: %s: speech locale required", l.Code)
	case l.TranslatorCode == "":
		return fmt.Errorf("lang: %s: translator code required", l.Code)
	case l.Voices.Female == "" && l.Voices.Male == "":
		return fmt.Errorf("lang: %s: at least one voice required", l.Code)
	}
	return nil
}

// Table is an ordered list of languages.
type Table []Language

// Default returns the Tamil, Telugu and English table.
func Default() Table {
	return Table{
		{
			Code:           "ta",
			Name:           "Tamil",
			NativeName:     "தமிழ்",
			SpeechLocale:   "ta-IN",
			TranslatorCode: "ta",
			Voices:         Voices{Female: "ta-IN-PallaviNeural", Male: "ta-IN-ValluvarNeural"},
		},
		{
			Code:           "te",
			Name:           "Telugu",
			NativeName:     "తెలుగు",
			SpeechLocale:   "te-IN",
			TranslatorCode: "te",
			Voices:         Voices{Female: "te-IN-ShrutiNeural", Male: "te-IN-MohanNeural"},
		},
		{
			Code:           "en",
			Name:           "English",
			NativeName:     "English",
			SpeechLocale:   "en-IN",
			TranslatorCode: "en",
			Voices:         Voices{Female: "en-IN-NeerjaNeural", Male: "en-IN-PrabhatNeural"},
		},
	}
}

// Lookup finds a language by code.
func (t Table) Lookup(code string) (Language, bool) {
	for _, l := range t {
		if l.Code == code {
			return l, true
		}
	}
	return Language{}, false
}

// Supported reports whether code is in the table.
func (t Table) Supported(code string) bool {
	_, ok := t.Lookup(code)
	return ok
}

// ByTranslatorCode finds a language by its translation service code.
func (t Table) ByTranslatorCode(code string) (Language, bool) {
	for _, l := range t {
		if strings.EqualFold(l.TranslatorCode, code) {
			return l, true
		}
	}
	return Language{}, false
}

// Codes returns the language codes in table order.
func (t Table) Codes() []string {
	codes := make([]string, len(t))
	for i, l := range t {
		codes[i] = l.Code
	}
	return codes
}

// Validate checks every entry, rejects duplicates and requires the pivot language.
func (t Table) Validate() error {
	seen := make(map[string]bool, len(t))
	for _, l := range t {
		if err := l.Validate(); err != nil {
			return err
		}
		if seen[l.Code] {
			return fmt.Errorf("lang: duplicate code %q", l.Code)
		}
		seen[l.Code] = true
	}
	if !seen[Pivot] {
		return fmt.Errorf("lang: pivot language %q missing", Pivot)
	}
	return nil
}
