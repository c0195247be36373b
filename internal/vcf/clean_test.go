package vcf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"a;b;c", "a,b,c"},
		{"“quoted”", `"quoted"`},
		{"it’s ‘fine’", "it's 'fine'"},
		{"", ""},
	}
	for _, tt := range tests {
		got := CleanString(tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, got, CleanString(got), "idempotent for %q", tt.in)
		assert.False(t, strings.ContainsAny(got, ";“”‘’"))
	}
}

func TestCleanSampleValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"150.45", "150"},
		{"1.0", "1"},
		{"-3.7", "-3"},
		{"0.45", "0.45"},
		{"0.999", "0.999"},
		{"42", "42"},
		{".", "."},
		{"0/1", "0/1"},
		{"10,5", "10,5"},
		{"1.5e3", "1500"},
		{"v1.2", "v1.2"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanSampleValue(tt.in), tt.in)
	}
}

func TestInfoKey(t *testing.T) {
	assert.Equal(t, "gene", InfoKey("gene"))
	assert.Equal(t, "a,b", InfoKey("a;b"))
}

func TestAllelicDepths(t *testing.T) {
	assert.Equal(t, "30,10", AllelicDepths("40", "10"))
	assert.Equal(t, "20,10", AllelicDepths("30.7", "10"))
	assert.Equal(t, Missing, AllelicDepths(".", "10"))
	assert.Equal(t, Missing, AllelicDepths("40", "n/a"))
}

func TestPercentToFraction(t *testing.T) {
	got, err := PercentToFraction("45")
	assert.NoError(t, err)
	assert.Equal(t, "0.45", got)

	got, err = PercentToFraction("100")
	assert.NoError(t, err)
	assert.Equal(t, "1", got)

	got, err = PercentToFraction(Missing)
	assert.NoError(t, err)
	assert.Equal(t, Missing, got)

	_, err = PercentToFraction("high")
	assert.Error(t, err)
}
