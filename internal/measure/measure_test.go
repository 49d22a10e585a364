package measure

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatlens-ai/chatlens/internal/trace"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadSingleObject(t *testing.T) {
	path := writeFile(t, "run.json", `{
		"conversation_id": "conv-1",
		"case_name": "weather",
		"traces": [],
		"measurements": [{"name": "score", "value": 0.9, "validation_passed": true}]
	}`)

	items, err := Load(path)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "conv-1", items[0].ConversationID)
	assert.Equal(t, "weather", items[0].CaseName)
	require.Len(t, items[0].Measurements, 1)
	assert.Equal(t, "score", items[0].Measurements[0].Name)
}

func TestLoadArray(t *testing.T) {
	path := writeFile(t, "run.json", `[
		{"conversation_id": "conv-1", "traces": []},
		{"conversation_id": "conv-2", "traces": []}
	]`)

	items, err := Load(path)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "conv-2", items[1].ConversationID)
}

func TestLoadJSONL(t *testing.T) {
	path := writeFile(t, "run.jsonl",
		`{"conversation_id": "conv-1", "traces": []}`+"\n\n"+
			`{"conversation_id": "conv-2", "traces": []}`+"\n")

	items, err := Load(path)
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestLoadInvalid(t *testing.T) {
	path := writeFile(t, "run.json", "not json")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestMeasurementFailed(t *testing.T) {
	passed, failed := true, false

	assert.False(t, Measurement{}.Failed())
	assert.False(t, Measurement{ValidationPassed: &passed}.Failed())
	assert.True(t, Measurement{ValidationPassed: &failed}.Failed())
}

func TestConversationValidationOK(t *testing.T) {
	failed := false

	ok := ConversationMeasurements{
		Measurements: []Measurement{{Name: "a"}},
		Traces: []TraceMeasurements{
			{Measurements: []Measurement{{Name: "b"}}},
		},
	}
	assert.True(t, ok.ValidationOK())
	assert.Equal(t, 2, ok.MeasurementCount())

	nok := ConversationMeasurements{
		Traces: []TraceMeasurements{
			{Measurements: []Measurement{{Name: "b", ValidationPassed: &failed}}},
		},
	}
	assert.False(t, nok.ValidationOK())
}

func TestSort(t *testing.T) {
	one, two := 1, 2
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	conv := func(caseNr, runNr *int, offset time.Duration) ConversationMeasurements {
		return ConversationMeasurements{
			CaseNr: caseNr,
			RunNr:  runNr,
			Traces: []TraceMeasurements{
				{Trace: trace.Trace{TraceID: "t", StartedAt: start.Add(offset)}},
			},
		}
	}

	items := []ConversationMeasurements{
		conv(&two, nil, 0),
		conv(&one, &two, 0),
		conv(&one, &one, 0),
		conv(nil, nil, time.Minute),
		conv(nil, nil, 0),
	}
	Sort(items)

	// Unset case numbers first, then case 1 by run nr, then case 2.
	assert.Nil(t, items[0].CaseNr)
	assert.Nil(t, items[1].CaseNr)
	assert.True(t, items[0].Traces[0].Trace.StartedAt.Before(items[1].Traces[0].Trace.StartedAt))
	assert.Equal(t, 1, *items[2].CaseNr)
	assert.Equal(t, 1, *items[2].RunNr)
	assert.Equal(t, 2, *items[3].RunNr)
	assert.Equal(t, 2, *items[4].CaseNr)
}
