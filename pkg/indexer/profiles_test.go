package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/observix/observix/pkg/models"
)

func TestNormalizePassthrough(t *testing.T) {
	docs := Normalize(Profile{Name: EnginePassthrough, Engine: EnginePassthrough},
		[]string{"hello", "world"})

	require.Len(t, docs, 2)
	assert.Equal(t, models.Doc{"raw": "hello"}, docs[0])
	assert.Equal(t, models.Doc{"raw": "world"}, docs[1])
}

func TestNormalizeJSONAuto(t *testing.T) {
	tests := []struct {
		name string
		line string
		want models.Doc
	}{
		{
			name: "object fields merge",
			line: `{"level":"error","code":500}`,
			want: models.Doc{"raw": `{"level":"error","code":500}`, "level": "error", "code": float64(500)},
		},
		{
			name: "raw key cannot be displaced",
			line: `{"raw":"fake","k":1}`,
			want: models.Doc{"raw": `{"raw":"fake","k":1}`, "k": float64(1)},
		},
		{
			name: "non-object JSON left alone",
			line: `[1,2,3]`,
			want: models.Doc{"raw": `[1,2,3]`},
		},
		{
			name: "scalar JSON left alone",
			line: `42`,
			want: models.Doc{"raw": `42`},
		},
		{
			name: "parse failure left alone",
			line: `not json {`,
			want: models.Doc{"raw": `not json {`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := Normalize(Profile{Name: EngineJSONAuto, Engine: EngineJSONAuto}, []string{tt.line})
			require.Len(t, docs, 1)
			assert.Equal(t, tt.want, docs[0])
		})
	}
}

func TestNormalizeKVPairs(t *testing.T) {
	tests := []struct {
		name string
		line string
		want models.Doc
	}{
		{
			name: "tokens extracted",
			line: "level=info msg=started attempt=3",
			want: models.Doc{"raw": "level=info msg=started attempt=3", "level": "info", "msg": "started", "attempt": "3"},
		},
		{
			name: "tokens without separator ignored",
			line: "level=info standalone",
			want: models.Doc{"raw": "level=info standalone", "level": "info"},
		},
		{
			name: "empty key ignored",
			line: "=orphan level=warn",
			want: models.Doc{"raw": "=orphan level=warn", "level": "warn"},
		},
		{
			name: "raw key cannot be displaced",
			line: "raw=fake level=warn",
			want: models.Doc{"raw": "raw=fake level=warn", "level": "warn"},
		},
		{
			name: "value keeps embedded separator",
			line: "query=a=b",
			want: models.Doc{"raw": "query=a=b", "query": "a=b"},
		},
		{
			name: "no tokens yields raw only",
			line: "plain message",
			want: models.Doc{"raw": "plain message"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := Normalize(Profile{Name: EngineKVPairs, Engine: EngineKVPairs}, []string{tt.line})
			require.Len(t, docs, 1)
			assert.Equal(t, tt.want, docs[0])
		})
	}
}

func TestNormalizeProfileFieldsFillGapsOnly(t *testing.T) {
	profile := Profile{
		Name:   "edge",
		Engine: EngineKVPairs,
		Fields: map[string]any{"env": "prod", "level": "default", "raw": "nope"},
	}

	docs := Normalize(profile, []string{"level=debug"})

	require.Len(t, docs, 1)
	assert.Equal(t, models.Doc{
		"raw":   "level=debug",
		"level": "debug",
		"env":   "prod",
	}, docs[0])
}
