package dimension

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"tcgpricing/internal/frame"
	"tcgpricing/internal/tcgcsv"
)

func productsFromJSON(t *testing.T, body string) *frame.Frame {
	t.Helper()
	var doc any
	require.NoError(t, json.Unmarshal([]byte(body), &doc))
	f, err := tcgcsv.ProductsFrame(doc)
	require.NoError(t, err)
	return f
}
