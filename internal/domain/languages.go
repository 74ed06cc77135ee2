package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Languages is a set of language codes stored as a JSON array
type Languages []string

// NewLanguages builds a set from langs: entries are trimmed, blanks dropped and
// duplicates removed, keeping first-seen order
func NewLanguages(langs ...string) Languages {
	set := make(Languages, 0, len(langs))
	for _, lang := range langs {
		lang = strings.TrimSpace(lang)
		if lang == "" || set.Contains(lang) {
			continue
		}
		set = append(set, lang)
	}
	return set
}

// Contains reports whether lang is in the set
func (l Languages) Contains(lang string) bool {
	return slices.Contains(l, lang)
}

// Value implements driver.Valuer
func (l Languages) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

// Scan implements sql.Scanner
func (l *Languages) Scan(src any) error {
	data, err := jsonBytes(src)
	if err != nil {
		return err
	}
	if data == nil {
		*l = nil
		return nil
	}
	return json.Unmarshal(data, (*[]string)(l))
}

// LanguageErrors maps a failed language to its error message, stored as a JSON object
type LanguageErrors map[string]string

// Value implements driver.Valuer
func (e LanguageErrors) Value() (driver.Value, error) {
	if e == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]string(e))
}

// Scan implements sql.Scanner
func (e *LanguageErrors) Scan(src any) error {
	data, err := jsonBytes(src)
	if err != nil {
		return err
	}
	if data == nil {
		*e = nil
		return nil
	}
	return json.Unmarshal(data, (*map[string]string)(e))
}

func jsonBytes(src any) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported json column type %T", src)
	}
}
