package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromDecimalString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "integer", input: "10000", expected: "10000"},
		{name: "fraction", input: "0.5", expected: "0.5"},
		{name: "eight places", input: "0.00000001", expected: "0.00000001"},
		{name: "surrounding spaces", input: " 12.25 ", expected: "12.25"},
		{name: "negative", input: "-3.1", expected: "-3.1"},
		{name: "garbage degrades to zero", input: "abc", expected: "0"},
		{name: "empty degrades to zero", input: "", expected: "0"},
		{name: "nan degrades to zero", input: "NaN", expected: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromDecimalString(tt.input)
			assert.True(t, got.Equal(FromDecimalString(tt.expected)), "got %s want %s", got, tt.expected)
		})
	}
}

func TestParseMoney_ReportsFailure(t *testing.T) {
	_, err := ParseMoney("12,5")
	require.Error(t, err)

	m, err := ParseMoney("12.5")
	require.NoError(t, err)
	assert.Equal(t, "12.5", m.String())
}

func TestFromFloat_NonFinite(t *testing.T) {
	assert.True(t, FromFloat(math.NaN()).IsZero())
	assert.True(t, FromFloat(math.Inf(1)).IsZero())
	assert.True(t, FromFloat(math.Inf(-1)).IsZero())
	assert.True(t, FromFloat(0.25).Equal(FromDecimalString("0.25")))
}

func TestMoney_Div(t *testing.T) {
	_, err := FromInt(1).Div(Zero)
	require.ErrorIs(t, err, ErrDivisionByZero)

	third, err := FromInt(1).Div(FromInt(3))
	require.NoError(t, err)
	assert.Equal(t, "0.333333333333333333", third.String())
}

func TestMoney_NoDriftOnRepeatedAddSub(t *testing.T) {
	step := FromDecimalString("0.1")
	acc := Zero
	for i := 0; i < 1000; i++ {
		acc = acc.Add(step)
	}
	assert.True(t, acc.Equal(FromInt(100)), "got %s", acc)

	for i := 0; i < 1000; i++ {
		acc = acc.Sub(step)
	}
	assert.True(t, acc.IsZero(), "got %s", acc)
}

func TestMoney_SignsAndCompare(t *testing.T) {
	a := FromDecimalString("1.5")
	b := FromDecimalString("-1.5")

	assert.True(t, a.IsPositive())
	assert.True(t, b.IsNegative())
	assert.True(t, Zero.IsZero())
	assert.Equal(t, 1, a.Cmp(b))
	assert.Equal(t, -1, b.Cmp(a))
	assert.Equal(t, 0, a.Cmp(FromDecimalString("1.50")))
	assert.True(t, a.Equal(FromDecimalString("1.500")))
}

func TestMoney_ToDisplayString(t *testing.T) {
	m := FromDecimalString("9950.005")
	assert.Equal(t, "9950.01", m.ToDisplayString(2))
	assert.Equal(t, "9950", m.ToDisplayString(0))
	assert.Equal(t, "9950.00500000", m.ToDisplayString(8))
}

func TestMoney_DisplayRoundTrip(t *testing.T) {
	values := []string{"0", "1", "0.5", "123.456789", "9950", "0.00000001", "-42.125", "1000000.99999"}
	for _, v := range values {
		x := FromDecimalString(v)
		for n := int32(0); n <= 8; n++ {
			back := FromDecimalString(x.ToDisplayString(n))
			expected, err := strconv.ParseFloat(x.Round(n).String(), 64)
			require.NoError(t, err)
			assert.Equal(t, expected, back.Float64(), "value %s places %d", v, n)
		}
	}
}

func TestMoney_Format(t *testing.T) {
	assert.Equal(t, "$9,950.00", FromDecimalString("9950").Format("USD"))
	assert.Equal(t, "$0.50", FromDecimalString("0.499").Format("USD"))
}

func TestMoney_JSON(t *testing.T) {
	type wrapper struct {
		Amount Money `json:"amount"`
	}

	payload, err := json.Marshal(wrapper{Amount: FromDecimalString("0.12345678")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"0.12345678"}`, string(payload))

	var decoded wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"amount":"oops"}`), &decoded))
	assert.True(t, decoded.Amount.IsZero())
}
