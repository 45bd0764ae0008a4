package vat

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestGrossFromNet(t *testing.T) {
	calc := New(2)

	cases := []struct {
		net  string
		rate string
		want string
	}{
		{"100.00", "0.20", "120.00"},
		{"100.00", "0", "100.00"},
		{"0.01", "0.20", "0.01"},
		{"33.33", "0.20", "40.00"},
		{"99.99", "0.23", "122.99"},
		{"0", "0.20", "0.00"},
	}

	for _, tc := range cases {
		got, err := calc.GrossFromNet(dec(tc.net), dec(tc.rate))
		require.NoError(t, err)
		assert.True(t, dec(tc.want).Equal(got), "net=%s rate=%s got=%s want=%s", tc.net, tc.rate, got, tc.want)
	}
}

func TestNetFromGross(t *testing.T) {
	calc := New(2)

	cases := []struct {
		gross string
		rate  string
		want  string
	}{
		{"120.00", "0.20", "100.00"},
		{"120.00", "0", "120.00"},
		{"122.99", "0.23", "99.99"},
		{"0.01", "0.20", "0.01"},
	}

	for _, tc := range cases {
		got, err := calc.NetFromGross(dec(tc.gross), dec(tc.rate))
		require.NoError(t, err)
		assert.True(t, dec(tc.want).Equal(got), "gross=%s rate=%s got=%s want=%s", tc.gross, tc.rate, got, tc.want)
	}
}

func TestNegativeRate(t *testing.T) {
	calc := New(2)

	_, err := calc.GrossFromNet(dec("100"), dec("-0.1"))
	assert.ErrorIs(t, err, ErrInvalidRate)

	_, err = calc.NetFromGross(dec("100"), dec("-0.1"))
	assert.ErrorIs(t, err, ErrInvalidRate)
}

func TestRoundTrip(t *testing.T) {
	calc := New(2)
	tolerance := dec("0.01")

	rates := []string{"0", "0.05", "0.10", "0.19", "0.20", "0.23"}
	nets := []string{"0.01", "0.10", "1.00", "9.99", "33.33", "100.00", "1234.56", "99999.99"}

	for _, r := range rates {
		for _, n := range nets {
			rate := dec(r)
			net := dec(n)

			gross, err := calc.GrossFromNet(net, rate)
			require.NoError(t, err)
			back, err := calc.NetFromGross(gross, rate)
			require.NoError(t, err)

			diff := back.Sub(net).Abs()
			assert.True(t, diff.LessThanOrEqual(tolerance),
				"round trip drifted: net=%s rate=%s gross=%s back=%s", net, rate, gross, back)
		}
	}
}

func TestRoundTripIdempotent(t *testing.T) {
	calc := New(2)
	rate := dec("0.20")

	// Once an amount is a rounded conversion result, converting again
	// must reproduce it exactly.
	gross, err := calc.GrossFromNet(dec("33.33"), rate)
	require.NoError(t, err)
	net, err := calc.NetFromGross(gross, rate)
	require.NoError(t, err)
	gross2, err := calc.GrossFromNet(net, rate)
	require.NoError(t, err)

	assert.True(t, gross.Equal(gross2), "gross=%s gross2=%s", gross, gross2)
}
