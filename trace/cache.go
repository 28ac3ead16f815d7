package trace

import (
	"encoding/json"
	"fmt"

	"github.com/greenqueue/carbonsim/carbon"
)

// cacheSample is one timestamped carbon-intensity reading, in the shape
// produced by an Electricity-Maps-style carbon cache.
type cacheSample struct {
	CarbonIntensity float64 `json:"carbonIntensity"`
	Datetime        string  `json:"datetime"`
}

// cacheDocument is the top-level JSON carbon cache shape.
type cacheDocument struct {
	Samples []cacheSample `json:"samples"`
}

// LoadCarbonCacheJSON parses a JSON carbon-intensity cache as an alternate
// trace source to LoadCarbonCSV. Some caches nest the sample list under a
// "data" key (the Electricity Maps API response shape); this is flattened
// before the final unmarshal, the same backward-compatibility trick the
// cache reader this is adapted from uses for nested "regions" documents.
func LoadCarbonCacheJSON(data []byte, startIndex int) (carbon.Series, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return carbon.Series{}, fmt.Errorf("trace: carbon cache: %w", err)
	}
	if nested, ok := raw["data"].([]any); ok {
		raw["samples"] = nested
		delete(raw, "data")
	}

	flattened, err := json.Marshal(raw)
	if err != nil {
		return carbon.Series{}, fmt.Errorf("trace: carbon cache: %w", err)
	}
	var doc cacheDocument
	if err := json.Unmarshal(flattened, &doc); err != nil {
		return carbon.Series{}, fmt.Errorf("trace: carbon cache: %w", err)
	}
	if startIndex < 0 {
		return carbon.Series{}, fmt.Errorf("trace: negative carbon_start_index %d", startIndex)
	}

	end := startIndex + CarbonWindowRows
	if end > len(doc.Samples) {
		end = len(doc.Samples)
	}
	values := make([]float64, 0, end-startIndex)
	for i := startIndex; i < end; i++ {
		values = append(values, doc.Samples[i].CarbonIntensity/1000.0)
	}
	return carbon.New(values), nil
}
