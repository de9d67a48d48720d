package redist

// dimensionTable maps booking accounts to their fixed dimension codes. The
// assignments mirror the cost controller's standing instructions; several
// accounts share a tuple and 9960 is deliberately booked without dimensions.
var dimensionTable = map[string]DimensionSet{
	"7999": {Dim1: "200", Dim3: "5000", Dim6: "9960"},
	"9039": {Dim1: "200"},
	"9040": {Dim1: "200"},
	"9130": {Dim1: "200", Dim3: "5100"},
	"9230": {Dim1: "200", Dim3: "5200"},
	"9330": {Dim1: "200", Dim3: "5300", Dim6: "9960"},
	"9411": {Dim1: "200", Dim5: "1236", Dim6: "100"},
	"9412": {Dim1: "200", Dim5: "1237", Dim6: "100"},
	"9910": {Dim1: "100", Dim2: "4010"},
	"9960": {},
}

// DimensionsFor returns the dimension codes configured for an account.
// Unknown accounts get the empty set.
func DimensionsFor(account string) DimensionSet {
	return dimensionTable[account]
}
