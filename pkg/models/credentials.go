package models

// ConnectionConfig is a decoded dbt or warehouse connection configuration.
// Configs arrive as JSON from the API and are persisted as encrypted JSON
// blobs, so they are handled as maps rather than per-type structs; the "type"
// key selects which fields are treated as secrets.
type ConnectionConfig map[string]any

// Type returns the connection type discriminator, or "" when absent.
func (c ConnectionConfig) Type() string {
	t, _ := c["type"].(string)
	return t
}

// Warehouse connection types.
const (
	WarehouseTypePostgres   = "postgres"
	WarehouseTypeRedshift   = "redshift"
	WarehouseTypeBigquery   = "bigquery"
	WarehouseTypeSnowflake  = "snowflake"
	WarehouseTypeDatabricks = "databricks"
	WarehouseTypeTrino      = "trino"
)

// Dbt connection types.
const (
	DbtConnectionTypeNone        = "none"
	DbtConnectionTypeGithub      = "github"
	DbtConnectionTypeGitlab      = "gitlab"
	DbtConnectionTypeBitbucket   = "bitbucket"
	DbtConnectionTypeAzureDevOps = "azure_devops"
	DbtConnectionTypeCloudIDE    = "dbt_cloud_ide"
)

// warehouseSensitiveFields lists, per warehouse type, the connection fields
// that are omitted from API responses and refilled from the stored config on
// partial updates.
var warehouseSensitiveFields = map[string][]string{
	WarehouseTypePostgres:   {"user", "password", "sshTunnelPrivateKey"},
	WarehouseTypeRedshift:   {"user", "password", "sshTunnelPrivateKey"},
	WarehouseTypeBigquery:   {"keyfileContents"},
	WarehouseTypeSnowflake:  {"user", "password", "privateKey", "privateKeyPass"},
	WarehouseTypeDatabricks: {"personalAccessToken"},
	WarehouseTypeTrino:      {"user", "password"},
}

// dbtSensitiveFields lists, per dbt connection type, the secret fields.
var dbtSensitiveFields = map[string][]string{
	DbtConnectionTypeGithub:      {"personal_access_token"},
	DbtConnectionTypeGitlab:      {"personal_access_token"},
	DbtConnectionTypeBitbucket:   {"personal_access_token"},
	DbtConnectionTypeAzureDevOps: {"personal_access_token"},
	DbtConnectionTypeCloudIDE:    {"api_key"},
}

// MergeMissingDbtSecrets fills secret fields missing from incomplete using
// values from complete. See MergeMissingWarehouseSecrets.
func MergeMissingDbtSecrets(incomplete, complete ConnectionConfig) ConnectionConfig {
	return mergeMissingSecrets(incomplete, complete, dbtSensitiveFields)
}

// MergeMissingWarehouseSecrets reconciles a partially-specified connection
// config against the previously stored complete one. Secret fields are never
// echoed back to clients, so an update request legitimately omits them; this
// fills only those gaps. A field counts as missing when it is absent, nil, or
// an empty string - an empty string is refilled from the stored value, it is
// not treated as an explicit clear. If the two configs declare different
// connection types the incomplete config is returned unchanged: secrets from
// one warehouse type are meaningless for another.
func MergeMissingWarehouseSecrets(incomplete, complete ConnectionConfig) ConnectionConfig {
	return mergeMissingSecrets(incomplete, complete, warehouseSensitiveFields)
}

func mergeMissingSecrets(incomplete, complete ConnectionConfig, registry map[string][]string) ConnectionConfig {
	if incomplete.Type() != complete.Type() {
		return incomplete
	}

	merged := make(ConnectionConfig, len(incomplete))
	for k, v := range incomplete {
		merged[k] = v
	}

	for _, field := range registry[incomplete.Type()] {
		if !isMissing(merged[field]) {
			continue
		}
		if v, ok := complete[field]; ok && !isMissing(v) {
			merged[field] = v
		}
	}

	return merged
}

func isMissing(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	default:
		return false
	}
}
