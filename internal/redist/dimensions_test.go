package redist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDimensionsForKnownAccounts(t *testing.T) {
	require.Equal(t, DimensionSet{Dim1: "200"}, DimensionsFor("9039"))
	require.Equal(t, DimensionSet{Dim1: "200", Dim3: "5000", Dim6: "9960"}, DimensionsFor("7999"))
	require.Equal(t, DimensionSet{Dim1: "200", Dim5: "1236", Dim6: "100"}, DimensionsFor("9411"))
}

func TestDimensionsForUnknownAccountIsEmpty(t *testing.T) {
	require.True(t, DimensionsFor("1234").IsZero())
}

func TestDimensionsForSharedAndEmptyTuples(t *testing.T) {
	// 9039 and 9040 intentionally share a tuple; 9960 books without dimensions.
	require.Equal(t, DimensionsFor("9039"), DimensionsFor("9040"))
	require.True(t, DimensionsFor("9960").IsZero())
}
