// SPDX-FileCopyrightText: The fieldagent Authors
//
// SPDX-License-Identifier: MIT

// Package i18n provides localized user-facing messages. Translations are embedded
// into the binary, the active language can be switched at runtime.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/Xuanwo/go-locale"
	"github.com/vorlif/spreak"
	"golang.org/x/text/language"
)

//go:embed locale/*
var locales embed.FS

// Supported lists the languages with embedded catalogs, in toggle order.
var Supported = []language.Tag{language.English, language.Hindi, language.Kannada}

// New returns a localizer for the given locale string. An empty locale is resolved
// from the host environment, falling back to English.
func New(loc string) (*spreak.Localizer, language.Tag, error) {
	tag := language.Make(loc)
	var err error
	if loc == "" {
		tag, err = locale.Detect()
		if err != nil {
			tag = language.English // Unable to detect locale, fallback to English
		}
	}

	localeFS, err := fs.Sub(locales, "locale")
	if err != nil {
		return nil, tag, fmt.Errorf("failed to load locales: %w", err)
	}

	bundle, err := spreak.NewBundle(
		spreak.WithSourceLanguage(language.English),
		spreak.WithFallbackLanguage(language.English),
		spreak.WithDomainFs("", localeFS),
		spreak.WithLanguage(tag),
	)
	if err != nil {
		return nil, tag, fmt.Errorf("failed to create i18n bundle: %w", err)
	}
	return spreak.NewLocalizer(bundle, tag), tag, nil
}

// Next returns the language following current in the toggle order. Languages
// outside the supported set restart the cycle at the first entry.
func Next(current language.Tag) language.Tag {
	for i, tag := range Supported {
		if tag == current {
			return Supported[(i+1)%len(Supported)]
		}
	}
	return Supported[0]
}
