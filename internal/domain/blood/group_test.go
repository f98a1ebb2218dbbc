package blood

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want Group
	}{
		{"O+", OPositive},
		{"o+", OPositive},
		{" o positive ", OPositive},
		{"O POSITIVE", OPositive},
		{"ab neg", ABNegative},
		{"AB-", ABNegative},
		{"b +", BPositive},
		{"A negative", ANegative},
		{"o pos", OPositive},
	}
	for _, c := range cases {
		got, err := Normalize(c.in)
		require.NoError(t, err, "input %q", c.in)
		assert.Equal(t, c.want, got, "input %q", c.in)
	}
}

func TestNormalizeRejectsInvalid(t *testing.T) {
	for _, in := range []string{"", "XYZ", "C+", "O", "positive", "A+B"} {
		_, err := Normalize(in)
		assert.ErrorIs(t, err, ErrInvalidGroup, "input %q", in)
	}
}

func TestIsValid(t *testing.T) {
	assert.True(t, OPositive.IsValid())
	assert.True(t, ABNegative.IsValid())
	assert.False(t, Group("o+").IsValid())
	assert.False(t, Group("").IsValid())
}
