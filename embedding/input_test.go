package embedding

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInput(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "desc\n\nbody", Input("desc", []byte("body")))
	assert.Equal(t, "body", Input("", []byte("body")))
	assert.Equal(t, "desc", Input("desc", nil))
}

func TestInputTruncatesContent(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 5000)
	got := Input("desc", []byte(long))

	assert.Len(t, got, len("desc\n\n")+contentSampleLength)
}
