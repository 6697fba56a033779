// internal/domain/settings/entity.go
package settings

import "time"

type Environment string

const (
	EnvSandbox    Environment = "sandbox"
	EnvProduction Environment = "production"
)

// GatewaySettings is the app_settings row (id = 'main'). Gateway credentials
// live in the database rather than the environment so they can be rotated
// without a redeploy; the webhook token is held as a bcrypt hash.
type GatewaySettings struct {
	ID               string      `json:"id" db:"id"`
	AsaasAPIKey      string      `json:"-" db:"asaas_api_key"`
	AsaasEnvironment Environment `json:"asaas_environment" db:"asaas_environment"`
	WebhookTokenHash string      `json:"-" db:"webhook_token_hash"`
	UpdatedAt        time.Time   `json:"updated_at" db:"updated_at"`
}

// BaseURL returns the Asaas API host for the configured environment.
func (s GatewaySettings) BaseURL() string {
	if s.AsaasEnvironment == EnvProduction {
		return "https://api.asaas.com/v3"
	}
	return "https://sandbox.asaas.com/api/v3"
}
