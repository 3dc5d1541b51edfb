package vault

import "os"

// envMappings lists the environment-variable overrides for known services.
// Credentials found here take precedence over the encrypted store and bypass
// it entirely; this is a deliberate trust-boundary decision for ephemeral and
// CI environments, not a fallback of convenience, and it changes which audit
// trail applies (the entry's detail records the source).
var envMappings = map[string]map[string]string{
	"google_vision": {
		"api_key":          "GOOGLE_VISION_API_KEY",
		"credentials_path": "GOOGLE_APPLICATION_CREDENTIALS",
		"project_id":       "GOOGLE_CLOUD_PROJECT",
	},
	"aws_textract": {
		"access_key_id":     "AWS_ACCESS_KEY_ID",
		"secret_access_key": "AWS_SECRET_ACCESS_KEY",
		"region":            "AWS_DEFAULT_REGION",
	},
	"azure_vision": {
		"subscription_key": "AZURE_COGNITIVE_SERVICES_KEY",
		"endpoint":         "AZURE_COGNITIVE_SERVICES_ENDPOINT",
	},
}

// requiredKeys is the per-service shape check behind Validate.
var requiredKeys = map[string][]string{
	"google_vision": {"api_key"},
	"aws_textract":  {"access_key_id", "secret_access_key"},
	"azure_vision":  {"subscription_key", "endpoint"},
}

func credentialsFromEnv(service string) map[string]string {
	mapping, ok := envMappings[service]
	if !ok {
		return nil
	}
	out := make(map[string]string)
	for key, envVar := range mapping {
		if value := os.Getenv(envVar); value != "" {
			out[key] = value
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
