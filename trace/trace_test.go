package trace

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCarbonCSVConvertsAndWindows(t *testing.T) {
	csvData := "carbon_intensity_avg,datetime\n1000,t0\n2000,t1\n3000,t2\n"
	series, err := LoadCarbonCSV(strings.NewReader(csvData), 1)
	require.NoError(t, err)
	require.Equal(t, 2, series.Len())
	assert.Equal(t, 2.0, series.At(0))
	assert.Equal(t, 3.0, series.At(1))
}

func TestLoadCarbonCSVMissingColumn(t *testing.T) {
	_, err := LoadCarbonCSV(strings.NewReader("foo,bar\n1,2\n"), 0)
	assert.Error(t, err)
}

func TestLoadJobCSVDefaultsProfileName(t *testing.T) {
	csvData := "arrival_time,length,cpus\n0,3600,2\n100,7200,4\n"
	records, err := LoadJobCSV(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "constant", records[0].ProfileName)
	assert.Equal(t, 3600, records[0].LengthSeconds)
	assert.Equal(t, 4, records[1].CPUs)
}

func TestBuildSchedulingContextComputesAverages(t *testing.T) {
	records := []JobRecord{
		{LengthSeconds: 3600},  // short
		{LengthSeconds: 7200},  // short (== 2h boundary)
		{LengthSeconds: 36000}, // long
	}
	ctx := BuildSchedulingContext(records, []int{21600, 86400})
	assert.Equal(t, (3600+7200)/2, ctx.AverageLengthSeconds[0])
	assert.Equal(t, 36000, ctx.AverageLengthSeconds[1])
}

func TestBuildSchedulingContextSingleQueueIgnoresAverages(t *testing.T) {
	ctx := BuildSchedulingContext(nil, []int{21600})
	assert.Nil(t, ctx.AverageLengthSeconds)
}

func TestResolveProfileStagedChunksAreCheckpointed(t *testing.T) {
	p, err := ResolveProfile("staged", 1500)
	require.NoError(t, err)
	assert.NotEmpty(t, p.Startup)
	for _, ph := range p.Work {
		assert.True(t, ph.Checkpoint)
	}
	assert.Equal(t, 1500, p.WorkDuration())
}

func TestResolveProfileUnknownErrors(t *testing.T) {
	_, err := ResolveProfile("quantum", 10)
	assert.Error(t, err)
}

func TestLoadCarbonCacheJSONFlattensDataKey(t *testing.T) {
	doc := `{"data":[{"carbonIntensity":500,"datetime":"t0"},{"carbonIntensity":250,"datetime":"t1"}]}`
	series, err := LoadCarbonCacheJSON([]byte(doc), 0)
	require.NoError(t, err)
	require.Equal(t, 2, series.Len())
	assert.Equal(t, 0.5, series.At(0))
	assert.Equal(t, 0.25, series.At(1))
}
