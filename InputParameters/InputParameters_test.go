package InputParameters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var caseYAML = `
Title: "Two well column"
NumCells: 20
HasDisgas: true
ReportStepDays: [30, 60]
TimeStepControl: "pid+iteration"
TargetIterations: 40
Wells:
  - Name: "INJ"
    Type: "injector"
    CompFrac: [1, 0, 0]
    Cells: [0]
    WI: [1.e-12]
    PerfDepth: [2500]
    RefDepth: 2500
    Controls:
      - Type: "RATE"
        Target: 0.01
        Distr: [1, 0, 0]
  - Name: "PROD"
    Type: "producer"
    CompFrac: [0, 1, 0]
    Cells: [19]
    WI: [1.e-12]
    PerfDepth: [2500]
    RefDepth: 2500
    Controls:
      - Type: "BHP"
        Target: 1.8e7
`

func TestParseOverlaysDefaults(t *testing.T) {
	sp := Defaults()
	require.NoError(t, sp.Parse([]byte(caseYAML)))

	// file values land
	assert.Equal(t, "Two well column", sp.Title)
	assert.Equal(t, 20, sp.NumCells)
	assert.True(t, sp.HasDisgas)
	assert.Equal(t, []float64{30, 60}, sp.ReportStepDays)
	assert.Equal(t, "pid+iteration", sp.TimeStepControl)
	assert.Equal(t, 40, sp.TargetIterations)

	// untouched fields keep their defaults
	assert.Equal(t, 1.e-5, sp.ToleranceMB)
	assert.Equal(t, 0.33, sp.RestartFactor)
	assert.Equal(t, 0.2, sp.DsMax)

	require.Len(t, sp.Wells, 2)
	assert.Equal(t, "injector", sp.Wells[0].Type)
	assert.Equal(t, "RATE", sp.Wells[0].Controls[0].Type)
	assert.Equal(t, [3]float64{1, 0, 0}, sp.Wells[0].Controls[0].Distr)
	assert.Equal(t, 1.8e7, sp.Wells[1].Controls[0].Target)

	require.NoError(t, sp.Validate())
}

func TestValidateRejectsBadInput(t *testing.T) {
	sp := Defaults()
	require.NoError(t, sp.Parse([]byte(caseYAML)))

	bad := *sp
	bad.ReportStepDays = nil
	assert.Error(t, bad.Validate())

	bad = *sp
	bad.InitialSw = 0.9
	assert.Error(t, bad.Validate())

	require.NoError(t, sp.Parse([]byte("Wells: [{Name: W, Type: pump}]")))
	assert.Error(t, sp.Validate())
}

func TestValidateRequiresWellControls(t *testing.T) {
	sp := Defaults()
	sp.Wells = []WellParameters{{Name: "W", Type: "producer"}}
	assert.Error(t, sp.Validate())
}
