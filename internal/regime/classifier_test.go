package regime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequiresSplit(t *testing.T) {
	split := []string{
		"Central Bank of Yemen",
		"central bank of yemen - aden",
		"CBY",
		"CBY-Sanaa",
		"Ministry of Finance",
		"MoF Aden",
		"Ministry of Planning and International Cooperation",
		"MoPIC",
		"Yemen Customs Authority",
		"Tax Authority",
	}
	for _, name := range split {
		assert.True(t, RequiresSplit(name), "expected split handling for %q", name)
	}
}

func TestRequiresSplitFailsOpenForInternationalBodies(t *testing.T) {
	notSplit := []string{
		"World Bank",
		"International Monetary Fund",
		"World Food Programme",
		"UNICEF",
		"Islamic Development Bank",
		"Sana'a Center for Strategic Studies",
		"",
	}
	for _, name := range notSplit {
		assert.False(t, RequiresSplit(name), "expected no split handling for %q", name)
	}
}

func TestAcronymsMatchOnTokenBoundaries(t *testing.T) {
	// "mof" must not fire inside unrelated words.
	assert.False(t, RequiresSplit("Mofarreh Trading Company"))
	assert.True(t, RequiresSplit("MoF Sana'a"))
}
