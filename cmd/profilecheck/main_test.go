package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const valid = `
name: hp
origin: https://www.hp.com
cards: [li.product-item]
fields:
  name: [strong.product-item-name a]
  price: [span.price]
  image_url: [img.product-image-photo@src]
  url: [a.product-item-link@href]
  brand: {candidates: [], fallback: HP}
block_signatures: [Access Denied]
pagination:
  strategy: query
  url: https://www.hp.com/pe-es/shop/laptops.html
  param: p
`

func TestCheckAndReport(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hp.yaml"), []byte(valid), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0644))

	results, err := check([]string{filepath.Join(dir, "*.yaml"), filepath.Join(dir, "hp.yaml")})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Error(t, results[0].err, "broken.yaml sorts first")
	assert.NoError(t, results[1].err)

	var out bytes.Buffer
	failed := report(&out, results, true)
	assert.Equal(t, 1, failed)
	assert.Contains(t, out.String(), "broken.yaml")
	assert.Contains(t, out.String(), "up to 50, stop after 2 empty")
	assert.Contains(t, out.String(), `brand:  (fallback "HP")`)
	assert.Contains(t, out.String(), "block: Access Denied")
}

func TestDescribe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(valid+"  pages: 4\n"), 0644))
	results, err := check([]string{path})
	require.NoError(t, err)
	require.NoError(t, results[0].err)

	strategy, pages := describe(results[0].profile)
	assert.Equal(t, "query", strategy)
	assert.Equal(t, "4 pages", pages)
}
