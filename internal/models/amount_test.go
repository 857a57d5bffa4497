package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountString(t *testing.T) {
	cases := []struct {
		name   string
		amount Amount
		want   string
	}{
		{name: "zero", amount: 0, want: "0 JUL"},
		{name: "whole", amount: 3 * NanoPerJUL, want: "3 JUL"},
		{name: "fraction", amount: 1_500_000_000, want: "1.5 JUL"},
		{name: "one nano", amount: 1, want: "0.000000001 JUL"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.amount.String())
		})
	}
}

func TestParseJUL(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    Amount
		wantErr string
	}{
		{name: "integer", input: "12", want: 12 * NanoPerJUL},
		{name: "decimal", input: "0.25", want: 250_000_000},
		{name: "leading dot", input: ".5", want: 500_000_000},
		{name: "nano precision", input: "1.000000001", want: NanoPerJUL + 1},
		{name: "empty", input: " ", wantErr: "amount is required"},
		{name: "negative", input: "-1", wantErr: "must not be negative"},
		{name: "not numeric", input: "abc", wantErr: "not a number"},
		{name: "too precise", input: "1.0000000001", wantErr: "more than 9 decimal places"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseJUL("amount", tc.input)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.True(t, IsValidation(err))
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAmountUnmarshalJSON(t *testing.T) {
	var v Validator
	require.NoError(t, json.Unmarshal([]byte(`{"address":"0xA","stake":50}`), &v))
	assert.Equal(t, Amount(50), v.Stake)

	require.NoError(t, json.Unmarshal([]byte(`{"address":"0xA","stake":5e9}`), &v))
	assert.Equal(t, 5*NanoPerJUL, v.Stake)

	require.NoError(t, json.Unmarshal([]byte(`18446744073709551615`), &v.Stake))
	assert.Equal(t, Amount(math.MaxUint64), v.Stake)

	for _, bad := range []string{`-3`, `1.5`, `"10"`, `null`, `18446744073709551616`, `1.8446744073709551616e19`, `1e20`} {
		var a Amount
		err := json.Unmarshal([]byte(bad), &a)
		assert.Error(t, err, bad)
	}
}

func TestValidateChain(t *testing.T) {
	ok := []Block{{Index: 0, Hash: "g"}, {Index: 1, Hash: "a"}}
	assert.NoError(t, ValidateChain(ok))
	assert.NoError(t, ValidateChain(nil))

	gap := []Block{{Index: 0, Hash: "g"}, {Index: 2, Hash: "b"}}
	assert.ErrorIs(t, ValidateChain(gap), ErrMalformedResponse)

	noHash := []Block{{Index: 0}}
	assert.ErrorIs(t, ValidateChain(noHash), ErrMalformedResponse)
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "insufficient balance", UserMessage(&ServerRejection{Op: "sendTransaction", Message: "insufficient balance"}))
	assert.Equal(t, "invalid from: wallet is not known", UserMessage(&ValidationError{Field: "from", Reason: "wallet is not known"}))
	assert.Contains(t, UserMessage(&NetworkError{Op: "getChain", Timeout: true}), "did not respond in time")
}
