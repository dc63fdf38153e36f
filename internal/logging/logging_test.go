package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert := assert.New(t)
	for in, want := range map[string]Level{
		"debug": LevelDebug,
		"INFO":  LevelInfo,
		"warn":  LevelWarn,
		"error": LevelError,
	} {
		l, err := ParseLevel(in)
		assert.Nil(err)
		assert.Equal(want, l)
	}
	_, err := ParseLevel("loud")
	assert.NotNil(err)

	f, err := ParseFormat("json")
	assert.Nil(err)
	assert.Equal(FormatJSON, f)
	_, err = ParseFormat("xml")
	assert.NotNil(err)
}

func TestLevelsAndOutput(t *testing.T) {
	assert := assert.New(t)
	buf := &bytes.Buffer{}
	SetOutput(buf)
	defer SetOutput(os.Stderr)
	defer InitLogger(LevelWarn, FormatText)

	InitLogger(LevelInfo, FormatJSON)
	Debug("hidden")
	assert.Equal(0, buf.Len())

	Info("shown", "sql", "select 1")
	rec := map[string]interface{}{}
	assert.Nil(json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal("shown", rec["msg"])
	assert.Equal("select 1", rec["sql"])
	assert.Equal("INFO", rec["level"])

	buf.Reset()
	InitLogger(LevelDebug, FormatText)
	Logger().Debug("deep parse", "nested", 1)
	assert.Contains(buf.String(), "msg=\"deep parse\"")
	assert.Contains(buf.String(), "nested=1")
}
