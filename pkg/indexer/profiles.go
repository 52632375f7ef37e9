// Package indexer turns raw log lines into structured documents under named
// profiles: a few built-in engines plus hot-reloaded custom profiles.
package indexer

import (
	"encoding/json"
	"strings"

	"github.com/observix/observix/pkg/models"
)

// Engines a profile can run. Custom profiles pick one and may add constant
// fields on top.
const (
	EnginePassthrough = "passthrough"
	EngineJSONAuto    = "json_auto"
	EngineKVPairs     = "kv_pairs"
)

// Profile names a normalization recipe: an engine plus constant fields added
// to every document. The built-in profiles are bare engines.
type Profile struct {
	Name   string         `yaml:"name"`
	Engine string         `yaml:"engine"`
	Fields map[string]any `yaml:"fields"`
}

func builtinProfiles() map[string]Profile {
	return map[string]Profile{
		EnginePassthrough: {Name: EnginePassthrough, Engine: EnginePassthrough},
		EngineJSONAuto:    {Name: EngineJSONAuto, Engine: EngineJSONAuto},
		EngineKVPairs:     {Name: EngineKVPairs, Engine: EngineKVPairs},
	}
}

func validEngine(engine string) bool {
	switch engine {
	case EnginePassthrough, EngineJSONAuto, EngineKVPairs:
		return true
	}
	return false
}

// Normalize runs the profile over each line. Every document carries the
// original line under "raw"; neither extracted fields nor profile constants
// can displace it.
func Normalize(profile Profile, lines []string) []models.Doc {
	docs := make([]models.Doc, 0, len(lines))
	for _, line := range lines {
		docs = append(docs, normalizeLine(profile, line))
	}
	return docs
}

func normalizeLine(profile Profile, line string) models.Doc {
	var doc models.Doc
	switch profile.Engine {
	case EngineJSONAuto:
		doc = jsonAutoDoc(line)
	case EngineKVPairs:
		doc = kvPairsDoc(line)
	default:
		doc = models.Doc{"raw": line}
	}

	// Profile constants fill gaps only; extracted keys and raw win.
	for k, v := range profile.Fields {
		if _, exists := doc[k]; !exists {
			doc[k] = v
		}
	}
	return doc
}

// jsonAutoDoc merges top-level fields of a JSON object line into the doc.
// Non-object JSON and parse failures leave the line as-is.
func jsonAutoDoc(line string) models.Doc {
	doc := models.Doc{"raw": line}

	var parsed any
	if err := json.Unmarshal([]byte(line), &parsed); err != nil {
		return doc
	}
	obj, ok := parsed.(map[string]any)
	if !ok {
		return doc
	}
	for k, v := range obj {
		if k == "raw" {
			continue
		}
		doc[k] = v
	}
	return doc
}

// kvPairsDoc extracts whitespace-separated k=v tokens. Tokens without "="
// or with an empty key are ignored.
func kvPairsDoc(line string) models.Doc {
	doc := models.Doc{"raw": line}

	for _, token := range strings.Fields(line) {
		key, value, found := strings.Cut(token, "=")
		if !found || key == "" || key == "raw" {
			continue
		}
		doc[key] = value
	}
	return doc
}
