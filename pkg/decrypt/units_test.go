package decrypt_test

import (
	"math/big"
	"testing"

	"github.com/grexie/confidential-defi/pkg/decrypt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnits(t *testing.T) {
	cases := map[string]int64{
		"1":         1_000_000,
		"1.5":       1_500_000,
		"0.000001":  1,
		"0.0000019": 1,
		".25":       250_000,
		"2.":        2_000_000,
		"0":         0,
	}
	for in, want := range cases {
		v, err := decrypt.ParseUnits(in, decrypt.CETHDecimals)
		require.NoError(t, err, in)
		assert.Equal(t, want, v.Int64(), in)
	}

	for _, in := range []string{"", ".", "1.2.3", "-1", "abc", "1e6", "1.1234567z", "2.000000!!"} {
		_, err := decrypt.ParseUnits(in, decrypt.CETHDecimals)
		assert.Error(t, err, in)
	}
}

func TestParseUnitsRejectsTruncatedGarbage(t *testing.T) {
	for _, in := range []string{"1000.xyz", "5.-", "7.9x", "1 .5"} {
		_, err := decrypt.ParseUnits(in, 0)
		assert.Error(t, err, in)
	}
}

func TestParseUnitsIntegerUnits(t *testing.T) {
	v, err := decrypt.ParseUnits("1000", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), v.Int64())

	v, err = decrypt.ParseUnits("1000.9", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), v.Int64())
}

func TestParseUint64Units(t *testing.T) {
	_, err := decrypt.ParseUint64Units("18446744073709551616", 0)
	assert.Error(t, err)

	v, err := decrypt.ParseUint64Units("18446744073709551615", 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(18446744073709551615), v)
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "1.5", decrypt.FormatUnits(big.NewInt(1_500_000), 6))
	assert.Equal(t, "1", decrypt.FormatUnits(big.NewInt(1_000_000), 6))
	assert.Equal(t, "0.000005", decrypt.FormatUnits(big.NewInt(5), 6))
	assert.Equal(t, "0", decrypt.FormatUnits(big.NewInt(0), 6))
	assert.Equal(t, "0", decrypt.FormatUnits(nil, 6))
	assert.Equal(t, "-0.6", decrypt.FormatUnits(big.NewInt(-600_000), 6))
	assert.Equal(t, "1000", decrypt.FormatUnits(big.NewInt(1000), 0))
}
