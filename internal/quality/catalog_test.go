package quality

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodesFor_ReturnsOnlyThatCategorysCodes(t *testing.T) {
	codes := CodesFor(CategoryJWT)
	require.NotEmpty(t, codes)
	for _, c := range codes {
		require.Contains(t, c, "JWT")
	}
}

func TestCodesFor_UnknownCategoryReturnsEmpty(t *testing.T) {
	require.Empty(t, CodesFor(Category("does-not-exist")))
}

func TestCatalog_EveryCodeIsUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, e := range Catalog {
		require.False(t, seen[e.Code], "duplicate catalog code %s", e.Code)
		seen[e.Code] = true
	}
}
