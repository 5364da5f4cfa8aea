package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeMissingWarehouseSecrets(t *testing.T) {
	tests := []struct {
		name       string
		incomplete ConnectionConfig
		complete   ConnectionConfig
		want       ConnectionConfig
	}{
		{
			name:       "fills absent secret fields",
			incomplete: ConnectionConfig{"type": "bigquery", "project": "analytics"},
			complete:   ConnectionConfig{"type": "bigquery", "project": "analytics", "keyfileContents": "{\"k\":1}"},
			want:       ConnectionConfig{"type": "bigquery", "project": "analytics", "keyfileContents": "{\"k\":1}"},
		},
		{
			// Empty string counts as missing and is refilled from the stored
			// config. Clients that never received the secret send "" back, so
			// "" cannot be read as an explicit clear.
			name:       "empty string counts as missing",
			incomplete: ConnectionConfig{"type": "bigquery", "keyfileContents": ""},
			complete:   ConnectionConfig{"type": "bigquery", "keyfileContents": "X", "project": "p"},
			want:       ConnectionConfig{"type": "bigquery", "keyfileContents": "X"},
		},
		{
			name:       "explicit value is never overwritten",
			incomplete: ConnectionConfig{"type": "snowflake", "password": "new-pass"},
			complete:   ConnectionConfig{"type": "snowflake", "password": "old-pass", "user": "old-user"},
			want:       ConnectionConfig{"type": "snowflake", "password": "new-pass", "user": "old-user"},
		},
		{
			name:       "type mismatch returns incomplete unchanged",
			incomplete: ConnectionConfig{"type": "postgres", "host": "h"},
			complete:   ConnectionConfig{"type": "bigquery", "keyfileContents": "X"},
			want:       ConnectionConfig{"type": "postgres", "host": "h"},
		},
		{
			name:       "non-secret fields are never copied",
			incomplete: ConnectionConfig{"type": "postgres", "user": ""},
			complete:   ConnectionConfig{"type": "postgres", "user": "etl", "host": "old-host", "password": "p"},
			want:       ConnectionConfig{"type": "postgres", "user": "etl", "password": "p"},
		},
		{
			name:       "secret missing from both stays missing",
			incomplete: ConnectionConfig{"type": "trino", "host": "h"},
			complete:   ConnectionConfig{"type": "trino", "user": ""},
			want:       ConnectionConfig{"type": "trino", "host": "h"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeMissingWarehouseSecrets(tt.incomplete, tt.complete)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMergeMissingWarehouseSecretsDoesNotMutateInput(t *testing.T) {
	incomplete := ConnectionConfig{"type": "databricks"}
	complete := ConnectionConfig{"type": "databricks", "personalAccessToken": "tok"}

	got := MergeMissingWarehouseSecrets(incomplete, complete)

	assert.Equal(t, "tok", got["personalAccessToken"])
	_, mutated := incomplete["personalAccessToken"]
	assert.False(t, mutated, "incomplete config must not be mutated")
}

func TestMergeMissingDbtSecrets(t *testing.T) {
	tests := []struct {
		name       string
		incomplete ConnectionConfig
		complete   ConnectionConfig
		want       ConnectionConfig
	}{
		{
			name:       "github token refilled",
			incomplete: ConnectionConfig{"type": "github", "repository": "org/repo"},
			complete:   ConnectionConfig{"type": "github", "personal_access_token": "ghp_x"},
			want:       ConnectionConfig{"type": "github", "repository": "org/repo", "personal_access_token": "ghp_x"},
		},
		{
			name:       "type without secrets is untouched",
			incomplete: ConnectionConfig{"type": "none", "target": "prod"},
			complete:   ConnectionConfig{"type": "none", "target": "dev"},
			want:       ConnectionConfig{"type": "none", "target": "prod"},
		},
		{
			name:       "dbt cloud api key refilled",
			incomplete: ConnectionConfig{"type": "dbt_cloud_ide", "api_key": ""},
			complete:   ConnectionConfig{"type": "dbt_cloud_ide", "api_key": "key"},
			want:       ConnectionConfig{"type": "dbt_cloud_ide", "api_key": "key"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeMissingDbtSecrets(tt.incomplete, tt.complete))
		})
	}
}

func TestConnectionConfigType(t *testing.T) {
	assert.Equal(t, "postgres", ConnectionConfig{"type": "postgres"}.Type())
	assert.Equal(t, "", ConnectionConfig{}.Type())
	assert.Equal(t, "", ConnectionConfig{"type": 42}.Type())
}
