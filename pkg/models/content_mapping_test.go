package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContentMappingJSONShape(t *testing.T) {
	m := ContentMapping{
		Spaces:            []IDPair{{From: 1, To: 10}},
		Charts:            []IDPair{{From: 2, To: 20}},
		ChartVersions:     []IDPair{{From: 3, To: 30}},
		Dashboards:        []IDPair{{From: 4, To: 40}},
		DashboardVersions: []IDPair{{From: 5, To: 50}},
	}

	data, err := json.Marshal(m)
	require.NoError(t, err)

	want := `{"spaces":[{"from":1,"to":10}],"charts":[{"from":2,"to":20}],"chartVersions":[{"from":3,"to":30}],"dashboards":[{"from":4,"to":40}],"dashboardVersions":[{"from":5,"to":50}]}`
	require.JSONEq(t, want, string(data))

	var back ContentMapping
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, m, back)
}
