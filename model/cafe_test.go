package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagUnmarshal(t *testing.T) {
	cases := map[string]struct {
		in      string
		want    Flag
		wantErr bool
	}{
		"string true":  {in: `"True"`, want: true},
		"string false": {in: `"False"`, want: false},
		"json true":    {in: `true`, want: true},
		"json false":   {in: `false`, want: false},
		"lowercase":    {in: `"true"`, wantErr: true},
		"yes":          {in: `"yes"`, wantErr: true},
		"number":       {in: `1`, wantErr: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var f Flag
			err := json.Unmarshal([]byte(tc.in), &f)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, f)
		})
	}
}

func TestParseFlag(t *testing.T) {
	f, err := ParseFlag("True")
	require.NoError(t, err)
	assert.True(t, bool(f))

	_, err = ParseFlag("TRUE")
	assert.Error(t, err)
}

func TestAddCafeRequestToCafe(t *testing.T) {
	var req AddCafeRequest
	require.NoError(t, json.Unmarshal([]byte(`{
		"cafe": "Test Cafe", "map": "https://m", "image": "https://i", "location": "London",
		"seats": "20+", "toilet": "True", "wifi": "False", "socket": "True", "phone_call": "False",
		"coffee_price": "", "open_time": "8AM", "close_time": "5PM", "submit": true
	}`), &req))

	cafe := req.ToCafe()
	assert.Equal(t, "Test Cafe", cafe.Name)
	assert.Equal(t, "https://m", cafe.MapURL)
	assert.True(t, cafe.HasToilet)
	assert.False(t, cafe.HasWifi)
	assert.True(t, cafe.HasSockets)
	assert.False(t, cafe.CanTakeCalls)
	assert.Nil(t, cafe.CoffeePrice)
	assert.Zero(t, cafe.ID)
}
