package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadBasicTypes(t *testing.T) {
	var (
		prealloc bool
		slabSize uint64
		maxBytes uint64
		hashPow  uint64
		ratio    float64
		profile  string
	)

	l := New()
	l.Bool("prealloc", true, &prealloc)
	l.Uint("slab_size", 1024, &slabSize)
	l.Uint("maxbytes", 0, &maxBytes)
	l.Uint("hash_power", 16, &hashPow)
	l.Float("oversize_ratio", 1.0, &ratio)
	l.String("profile", "", &profile)

	input := `
# this is a comment
prealloc: no
slab_size: 1024 * 1024
maxbytes: (1024 * 1024) * 1024
hash_power: 20
oversize_ratio: 1.25
profile: default # trailing comment
`
	require.NoError(t, l.Load(strings.NewReader(input)))
	require.False(t, prealloc)
	require.EqualValues(t, 1024*1024, slabSize)
	require.EqualValues(t, 1024*1024*1024, maxBytes)
	require.EqualValues(t, 20, hashPow)
	require.InDelta(t, 1.25, ratio, 0.0001)
	require.Equal(t, "default", profile)
}

func TestLoadUnknownOption(t *testing.T) {
	l := New()
	var x bool
	l.Bool("known", false, &x)

	err := l.Load(strings.NewReader("mystery: yes\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown option")
}

func TestLoadMalformedLine(t *testing.T) {
	l := New()
	err := l.Load(strings.NewReader("not-a-valid-line\n"))
	require.Error(t, err)
}

func TestEvalUintExprPrecedence(t *testing.T) {
	v, err := evalUintExpr("2 + 3 * 4")
	require.NoError(t, err)
	require.EqualValues(t, 14, v)

	v, err = evalUintExpr("(2 + 3) * 4")
	require.NoError(t, err)
	require.EqualValues(t, 20, v)
}
