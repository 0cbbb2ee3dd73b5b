package dedup

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/harvest/internal/types"
)

func rec(name, u string) types.Record {
	return types.Record{
		types.FieldName:  name,
		types.FieldPrice: "S/ 1",
		types.FieldImage: "https://img.example/" + name + ".jpg",
		types.FieldURL:   u,
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		name string
		a, b types.Record
		same bool
	}{
		{"trailing slash", rec("A", "https://shop.example/p/1/"), rec("A", "https://shop.example/p/1"), true},
		{"query noise", rec("A", "https://shop.example/p/1?ref=sr_pg_2&qid=9"), rec("A", "https://shop.example/p/1?ref=sr_pg_3"), true},
		{"fragment", rec("A", "https://shop.example/p/1#reviews"), rec("A", "https://shop.example/p/1"), true},
		{"host case", rec("A", "https://SHOP.example/p/1"), rec("A", "https://shop.example/p/1"), true},
		{"different path", rec("A", "https://shop.example/p/1"), rec("A", "https://shop.example/p/2"), false},
		{"path case matters", rec("A", "https://shop.example/P/1"), rec("A", "https://shop.example/p/1"), false},
		{"missing url uses name and image", rec("A", ""), rec("A", types.Unavailable), true},
		{"relative url uses composite", rec("A", "/p/1"), rec("B", "/p/1"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.same, Key(tt.a) == Key(tt.b))
		})
	}
}

func TestAggregatorPreservesFirstSeenOrder(t *testing.T) {
	a := New()
	page1 := []types.Record{
		rec("A", "https://shop.example/a"),
		rec("B", "https://shop.example/b"),
		rec("C", "https://shop.example/c"),
	}
	page2 := []types.Record{
		rec("B again", "https://shop.example/b/"),
		rec("D", "https://shop.example/d"),
		rec("A again", "https://shop.example/a?page=2"),
	}

	assert.Equal(t, 3, a.Add(page1...))
	assert.Equal(t, 1, a.Add(page2...))

	var names []string
	for _, r := range a.Records() {
		names = append(names, r.Name())
	}
	assert.Equal(t, []string{"A", "B", "C", "D"}, names)
	assert.Equal(t, 2, a.Dropped())
}

func TestAggregatorIdempotentOnRepeatedPage(t *testing.T) {
	a := New()
	var page []types.Record
	for i := 0; i < 5; i++ {
		page = append(page, rec(fmt.Sprint("item", i), fmt.Sprintf("https://shop.example/p/%d", i)))
	}
	a.Add(page...)
	first := a.Records()

	assert.Zero(t, a.Add(page...))
	assert.Equal(t, first, a.Records())

	keys := make(map[string]bool)
	for _, r := range a.Records() {
		k := Key(r)
		require.False(t, keys[k], "duplicate key %s", k)
		keys[k] = true
	}
}

func TestAggregatorRecordsIsCopy(t *testing.T) {
	a := New()
	a.Add(rec("A", "https://shop.example/a"))
	out := a.Records()
	out[0] = rec("Z", "https://shop.example/z")
	assert.Equal(t, "A", a.Records()[0].Name())
}
