// Package secret resolves configuration values that may reference the
// environment or an external secret.
//
// Values are expanded strictly: ${VAR} must be set, $$ is a literal dollar.
// A value of the form secretref:<provider>:<ref> is replaced by what the
// named provider returns, for example:
//
//	STOREFRONT_ACCESS_TOKEN=secretref:file:/run/secrets/storefront_token
//	STOREFRONT_API_BASE_URL=https://${MARKET_HOST}/api
package secret
