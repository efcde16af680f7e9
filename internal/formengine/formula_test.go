package formengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormulaBareTarget(t *testing.T) {
	f, err := ParseFormula("651-652=653")
	require.NoError(t, err)
	assert.Equal(t, "651-652", f.Expr)
	assert.Equal(t, int64(653), f.TargetQuestionID)
	assert.False(t, f.SingleCell())
}

func TestParseFormulaCellTarget(t *testing.T) {
	f, err := ParseFormula("114+115_2=116_3")
	require.NoError(t, err)
	assert.Equal(t, "114+115_2", f.Expr)
	assert.Equal(t, int64(116), f.TargetQuestionID)
	assert.Equal(t, int64(3), f.TargetSubTopicID)
	assert.True(t, f.SingleCell())
}

func TestParseFormulaMalformed(t *testing.T) {
	cases := []string{
		"1+2",     // no target
		"=5",      // empty expression
		"1+2=",    // empty target
		"1=2=3",   // two separators
		"1+2=abc", // non-numeric target
		"1+2=3_",  // dangling separator
	}
	for _, raw := range cases {
		_, err := ParseFormula(raw)
		assert.Error(t, err, raw)
	}
}
