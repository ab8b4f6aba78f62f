package config

import "os"

// envPrefix namespaces overrides
const envPrefix = "GRIDEXPORTER_"

// ApplyEnv overrides config values from the environment. Empty variables
// are treated as unset. The bare USERNAME and PASSWORD variables only fill
// credentials the file left empty, since USERNAME is usually the OS login.
func (c *Config) ApplyEnv() {
	fillFromEnv(&c.Cognito.Username, "USERNAME")
	fillFromEnv(&c.Cognito.Password, "PASSWORD")
	setFromEnv(&c.Cognito.Username, envPrefix+"USERNAME")
	setFromEnv(&c.Cognito.Password, envPrefix+"PASSWORD")
	setFromEnv(&c.Cognito.UserPoolID, envPrefix+"USER_POOL_ID")
	setFromEnv(&c.Cognito.ClientID, envPrefix+"CLIENT_ID")
	setFromEnv(&c.Cognito.Region, envPrefix+"REGION")
	setFromEnv(&c.Cognito.AuthFlow, envPrefix+"AUTH_FLOW")
	setFromEnv(&c.API.AccountURL, envPrefix+"ACCOUNT_URL")
	setFromEnv(&c.API.UsageURL, envPrefix+"USAGE_URL")
	setFromEnv(&c.Exporter.ListenAddress, envPrefix+"LISTEN_ADDRESS")
	setFromEnv(&c.MQTT.Broker, envPrefix+"MQTT_BROKER")
	setFromEnv(&c.MQTT.Username, envPrefix+"MQTT_USERNAME")
	setFromEnv(&c.MQTT.Password, envPrefix+"MQTT_PASSWORD")
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func fillFromEnv(dst *string, key string) {
	if *dst == "" {
		setFromEnv(dst, key)
	}
}
