package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartline-ai/cartline/internal/observability"
)

const sampleCSV = `parent_asin,title,price,average_rating,categories,features,description
B001,USB Microphone,24.99,4.5,"['Electronics', 'Microphones']","['Plug and play', 'Cardioid']",Condenser microphone for streaming
B002,Studio Headphones,49.99,4.2,[],[],Closed-back monitoring headphones
,Missing Identifier,9.99,3.0,[],[],should be skipped
B003,,9.99,3.0,[],[],missing title is skipped
B001,Duplicate Microphone,1.00,1.0,[],[],first occurrence wins
B004,Bare Minimum,,,,,
`

func TestReadCSV_ParsesRecords(t *testing.T) {
	cat, err := ReadCSV(strings.NewReader(sampleCSV), observability.Nop())
	require.NoError(t, err)

	assert.Equal(t, 3, cat.Len())

	p, ok := cat.Get("B001")
	require.True(t, ok)
	assert.Equal(t, "USB Microphone", p.Title)
	assert.Equal(t, 24.99, p.Price)
	assert.Equal(t, 4.5, p.Rating)
	assert.Equal(t, []string{"Electronics", "Microphones"}, p.Categories)
	assert.Equal(t, []string{"Plug and play", "Cardioid"}, p.Features)
	assert.Equal(t, "Condenser microphone for streaming", p.Description)
}

func TestReadCSV_SkipsBadRowsAndKeepsFirstDuplicate(t *testing.T) {
	cat, err := ReadCSV(strings.NewReader(sampleCSV), observability.Nop())
	require.NoError(t, err)

	p, ok := cat.Get("B001")
	require.True(t, ok)
	assert.Equal(t, "USB Microphone", p.Title, "first occurrence wins for duplicate identifiers")

	_, ok = cat.Get("B003")
	assert.False(t, ok, "rows without a title are skipped")
}

func TestReadCSV_CoercesMissingNumericFields(t *testing.T) {
	cat, err := ReadCSV(strings.NewReader(sampleCSV), observability.Nop())
	require.NoError(t, err)

	p, ok := cat.Get("B004")
	require.True(t, ok)
	assert.Equal(t, 0.0, p.Price)
	assert.Equal(t, 0.0, p.Rating)
	assert.Nil(t, p.Categories)
}

func TestReadCSV_MissingRequiredColumn(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("title,price\nMic,9.99\n"), observability.Nop())
	assert.Error(t, err)
}

func TestProduct_EmbeddingText(t *testing.T) {
	p := Product{
		Title:       "USB Microphone",
		Description: "for streaming",
		Features:    []string{"plug and play", "cardioid"},
	}
	assert.Equal(t, "USB Microphone for streaming plug and play cardioid", p.EmbeddingText())

	bare := Product{Title: "Lamp"}
	assert.Equal(t, "Lamp", bare.EmbeddingText())
}

func TestCatalog_FingerprintIsOrderIndependent(t *testing.T) {
	a := New([]Product{
		{ID: "P1", Title: "One", Price: 1},
		{ID: "P2", Title: "Two", Price: 2},
	})
	b := New([]Product{
		{ID: "P2", Title: "Two", Price: 2},
		{ID: "P1", Title: "One", Price: 1},
	})
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestCatalog_FingerprintChangesWithContent(t *testing.T) {
	a := New([]Product{{ID: "P1", Title: "One", Price: 1}})
	b := New([]Product{{ID: "P1", Title: "One", Price: 2}})
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
