package render

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnapshot(t *testing.T) {
	markup := `<html><head><title> Robot Check </title><style>.x{}</style></head>
<body><h1>Enter the   characters</h1><script>var hidden = "Access Denied";</script>
<noscript>enable js</noscript><p>you see below</p></body></html>`

	s, err := NewSnapshot("http://shop.example.com/list?page=2", markup)
	require.NoError(t, err)

	assert.Equal(t, "Robot Check", s.Title)
	assert.Equal(t, "Enter the characters you see below", s.Text())
	assert.NotContains(t, s.Text(), "Access Denied")
	assert.Equal(t, "http", s.Scheme())
}

func TestSnapshotSchemeDefault(t *testing.T) {
	s, err := NewSnapshot("", "<html><body></body></html>")
	require.NoError(t, err)
	assert.Equal(t, "https", s.Scheme())
	assert.Empty(t, s.Text())
}

func TestFatal(t *testing.T) {
	cause := errors.New("websocket closed")
	err := Fatal("navigate", cause)
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsFatal(cause))
}
