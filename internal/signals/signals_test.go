package signals

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-diff/internal/domain"
)

const revA = `RNAV (GNSS) RWY 27
FINAL COURSE 271°
CAT I  DA 450 FT (400)
RVR 550
DME 12.5 NM from IAF
REMARKS: Circling not available at night.`

func TestExtract(t *testing.T) {
	s := Extract(revA)

	assert.Equal(t, []string{"450"}, s.Values["DA"])
	assert.Equal(t, []string{"550"}, s.Values["RVR"])
	assert.Equal(t, []string{"I"}, s.Values["CAT"])
	assert.Equal(t, []string{"271°"}, s.Values["COURSE"])
	assert.Equal(t, []string{"12.5"}, s.Values["DME"])
	assert.Empty(t, s.Values["MDA"])
	require.Len(t, s.Remarks, 1)
	assert.Equal(t, "Circling not available at night.", s.Remarks[0])
}

func TestExtract_CaseInsensitive(t *testing.T) {
	s := Extract("mda: 620 ft, vis 1500")
	assert.Equal(t, []string{"620"}, s.Values["MDA"])
	assert.Equal(t, []string{"1500"}, s.Values["VIS"])
}

func TestExtract_RemarksTruncated(t *testing.T) {
	long := "NOTE:" + strings.Repeat("x", 1000)
	s := Extract(long)
	require.Len(t, s.Remarks, 1)
	assert.Len(t, []rune(s.Remarks[0]), remarksLength)
}

func TestCompare(t *testing.T) {
	revB := `RNAV (GNSS) RWY 27
FINAL COURSE 271°
CAT I  DA 500 FT (450)
RVR 750
DME 12.5 NM from IAF
REMARKS: Circling not available at night.`

	changes := Compare(revA, revB)
	require.Len(t, changes, 2)

	assert.Equal(t, domain.SignalChange{Key: "DA", Old: "450", New: "500", Delta: "(+50)"}, changes[0])
	assert.Equal(t, domain.SignalChange{Key: "RVR", Old: "550", New: "750", Delta: "(+200)"}, changes[1])
	assert.Equal(t, "DA: OLD 450 -> NEW 500 (+50)", Line(changes[0]))
}

func TestCompare_NegativeDeltaAndMissing(t *testing.T) {
	changes := Compare("MDA 700 FT", "MDA 650.5 FT\nOCH 300 FT")
	require.Len(t, changes, 2)
	assert.Equal(t, domain.SignalChange{Key: "MDA", Old: "700", New: "650.5", Delta: "(-49.5)"}, changes[0])
	assert.Equal(t, domain.SignalChange{Key: "OCH", Old: missing, New: "300"}, changes[1])
}

func TestCompare_NonNumericHasNoDelta(t *testing.T) {
	changes := Compare("CAT II", "CAT III")
	require.Len(t, changes, 1)
	assert.Equal(t, "", changes[0].Delta)
}

func TestCompare_RemarksChanged(t *testing.T) {
	changes := Compare("REMARKS: A", "REMARKS: B")
	require.Len(t, changes, 1)
	assert.Equal(t, RemarksKey, changes[0].Key)
}

func TestCompare_Identical(t *testing.T) {
	assert.Empty(t, Compare(revA, revA))
}

func TestExtract_HeightNeedsUnit(t *testing.T) {
	assert.Empty(t, Extract("DA 450 (400)").Values["DA"])
	assert.Equal(t, []string{"450"}, Extract("DA 450 FT (400)").Values["DA"])
}
