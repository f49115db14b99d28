package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOverrides(t *testing.T) {
	overrides, err := parseOverrides(
		[]string{"d1=餐饮", "d2=交通出行"},
		[]string{"d1=Morning coffee"},
		[]string{"d3=Cafe=Blue"},
	)
	require.NoError(t, err)
	require.Len(t, overrides, 3)

	assert.Equal(t, "d1", overrides[0].ID)
	assert.Equal(t, "餐饮", *overrides[0].Category)
	assert.Equal(t, "Morning coffee", *overrides[0].Description)
	assert.Nil(t, overrides[0].Merchant)

	assert.Equal(t, "d2", overrides[1].ID)
	assert.Nil(t, overrides[1].Description)

	assert.Equal(t, "d3", overrides[2].ID)
	assert.Equal(t, "Cafe=Blue", *overrides[2].Merchant)
}

func TestParseOverrides_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"missing separator", "d1"},
		{"missing id", "=餐饮"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseOverrides([]string{tt.value}, nil, nil)
			assert.ErrorContains(t, err, "expected DRAFT_ID=VALUE")
		})
	}
}

func TestParseOverrides_Empty(t *testing.T) {
	overrides, err := parseOverrides(nil, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, overrides)
}
