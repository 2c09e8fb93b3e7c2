package util

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestZerologLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, zerolog.TraceLevel, zerologLevel(TraceLevel))
	assert.Equal(t, zerolog.ErrorLevel, zerologLevel(ErrorLevel))
	assert.Equal(t, zerolog.InfoLevel, zerologLevel(42))
}

func TestZerologWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := zerologWriter{logger: zerolog.New(&buf), level: zerolog.WarnLevel}
	n, err := w.Write([]byte("2024/01/01 12:00:00 fuse: mount failed\n"))
	assert.NoError(t, err)
	assert.Equal(t, len("2024/01/01 12:00:00 fuse: mount failed\n"), n)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"message":"mount failed"`)
}

func TestValueOr(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 3, ValueOr(nil, 3))
	assert.Equal(t, 5, ValueOr(Pointer(5), 3))
}
