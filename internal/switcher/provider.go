package switcher

import (
	"database/sql"
	"encoding/json"
)

// DefaultProviderName substitutes a missing provider name.
const DefaultProviderName = "Unnamed provider"

// ModelMapping assigns concrete model identifiers to the four role slots a
// provider may configure. All slots are optional.
type ModelMapping struct {
	Fast     string `json:"fast,omitempty"`
	Balanced string `json:"balanced,omitempty"`
	Advanced string `json:"advanced,omitempty"`
	Custom   string `json:"custom,omitempty"`
}

// Provider is one credential/endpoint configuration owned by cc-switch.
// Records are created, updated, and deleted exclusively by the cc-switch
// application; ccbridge only ever reads snapshots.
type Provider struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name"`
	APIKey    string        `json:"apiKey"`
	BaseURL   string        `json:"baseUrl,omitempty"`
	Active    bool          `json:"active"`
	Preset    string        `json:"preset,omitempty"`
	Models    *ModelMapping `json:"models,omitempty"`
	CreatedAt string        `json:"createdAt,omitempty"` // opaque, passed through verbatim
	UpdatedAt string        `json:"updatedAt,omitempty"`
}

// scanProvider maps one database row to a Provider. Field-level defects are
// tolerated with local defaults; only a scan failure aborts the row.
func scanProvider(rows *sql.Rows) (Provider, error) {
	var (
		p         Provider
		name      sql.NullString
		apiKey    sql.NullString
		baseURL   sql.NullString
		isActive  sql.NullInt64
		preset    sql.NullString
		models    sql.NullString
		createdAt sql.NullString
		updatedAt sql.NullString
	)

	if err := rows.Scan(&p.ID, &name, &apiKey, &baseURL, &isActive, &preset, &models, &createdAt, &updatedAt); err != nil {
		return Provider{}, err
	}

	p.Name = name.String
	if p.Name == "" {
		p.Name = DefaultProviderName
	}
	p.APIKey = apiKey.String
	p.BaseURL = baseURL.String
	p.Active = isActive.Int64 != 0
	p.Preset = preset.String
	p.Models = parseModelMapping(models.String)
	p.CreatedAt = createdAt.String
	p.UpdatedAt = updatedAt.String

	return p, nil
}

// parseModelMapping decodes the JSON-encoded models column. Malformed or
// empty text yields no mapping rather than an error.
func parseModelMapping(raw string) *ModelMapping {
	if raw == "" {
		return nil
	}
	var m ModelMapping
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	if m == (ModelMapping{}) {
		return nil
	}
	return &m
}
