// Package frontmatter pulls the metadata header out of a markdown document.
//
// YAML (---), TOML (+++) and JSON (;;;) headers are recognised. Only the
// fields a blog entry needs are kept; everything else in the header is ignored.
package frontmatter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	fm "github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"
)

// Metadata holds the header fields of a post. A nil pointer means the field was
// absent or blank. Tags is never nil.
type Metadata struct {
	Title       *string
	Description *string
	Date        *string
	Tags        []string
	Image       *string
	Author      *string
}

var formats = []*fm.Format{
	fm.NewFormat("---", "---", yaml.Unmarshal),
	fm.NewFormat("---yaml", "---", yaml.Unmarshal),
	fm.NewFormat("+++", "+++", toml.Unmarshal),
	fm.NewFormat("---toml", "---", toml.Unmarshal),
	fm.NewFormat(";;;", ";;;", json.Unmarshal),
	fm.NewFormat("---json", "---", json.Unmarshal),
}

// Extract returns the document's metadata and the body following the header.
// A missing, unterminated or undecodable header yields empty metadata and the
// full text as body.
func Extract(raw string) (Metadata, string) {
	meta, body, err := Parse(raw)
	if err != nil {
		return meta, raw
	}
	return meta, body
}

// Parse is Extract without the fallback: a malformed header is reported along
// with empty metadata.
func Parse(raw string) (Metadata, string, error) {
	raw = strings.TrimPrefix(raw, "\uFEFF")
	var fields map[string]any
	body, err := fm.Parse(strings.NewReader(raw), &fields, formats...)
	if err != nil {
		return Metadata{Tags: []string{}}, "", fmt.Errorf("parse frontmatter: %w", err)
	}
	return fromMap(fields), string(body), nil
}

func fromMap(fields map[string]any) Metadata {
	return Metadata{
		Title:       scalar(fields["title"]),
		Description: scalar(fields["description"]),
		Date:        date(fields["date"]),
		Tags:        tags(fields["tags"]),
		Image:       scalar(fields["image"]),
		Author:      author(fields["author"]),
	}
}

func scalar(v any) *string {
	var s string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s = t
	case time.Time:
		return date(t)
	case map[string]any, []any:
		return nil
	default:
		s = fmt.Sprint(t)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func date(v any) *string {
	t, ok := v.(time.Time)
	if !ok {
		return scalar(v)
	}
	var s string
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		s = t.Format("2006-01-02")
	} else {
		s = t.Format(time.RFC3339)
	}
	return &s
}

func tags(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s := scalar(item); s != nil {
				out = append(out, *s)
			}
		}
	case []string:
		for _, item := range t {
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, part := range strings.Split(t, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// author keeps a plain name as is and serialises anything structured to JSON.
func author(v any) *string {
	switch v.(type) {
	case nil:
		return nil
	case map[string]any, []any, []map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		s := string(b)
		return &s
	}
	return scalar(v)
}
