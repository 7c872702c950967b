package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/passlink/internal/flagx"
	"github.com/dmitrijs2005/passlink/internal/timex"
)

// JsonConfig is the JSON-file shape of Config. Interval fields use
// timex.Duration so both "90s" strings and integer nanoseconds parse; after
// unmarshalling, set values are copied onto the runtime Config.
type JsonConfig struct {
	EndpointAddr         *string         `json:"endpoint_addr"`
	DatabaseDSN          *string         `json:"database_dsn"`
	SecretKey            *string         `json:"secret_key"`
	TokenValidity        *timex.Duration `json:"token_validity"`
	OTPCodeAlphabet      *string         `json:"otp_code_alphabet"`
	OTPCodeLength        *int            `json:"otp_code_length"`
	OTPExpiration        *timex.Duration `json:"otp_expiration"`
	HashTimeCost         *uint32         `json:"hash_time_cost"`
	RandomDelayMax       *timex.Duration `json:"random_delay_max"`
	HandshakeSecret      *string         `json:"handshake_secret"`
	HandshakeTokenLength *int            `json:"handshake_token_length"`
	HandshakeInterval    *timex.Duration `json:"handshake_interval"`
	HandshakeTimeout     *timex.Duration `json:"handshake_timeout"`
	SMTPAddr             *string         `json:"smtp_addr"`
	SMTPFrom             *string         `json:"smtp_from"`
}

// parseJson overlays configuration values from the JSON file given via the
// -c/-config flags, when present. Fields absent from the file keep their
// current values. Unreadable or invalid files panic: a config file that was
// explicitly pointed at must not be half-applied.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	applyJson(config, c)
}

func applyJson(config *Config, c *JsonConfig) {
	if c.EndpointAddr != nil {
		config.EndpointAddr = *c.EndpointAddr
	}
	if c.DatabaseDSN != nil {
		config.DatabaseDSN = *c.DatabaseDSN
	}
	if c.SecretKey != nil {
		config.SecretKey = *c.SecretKey
	}
	if c.TokenValidity != nil {
		config.TokenValidity = c.TokenValidity.Duration
	}
	if c.OTPCodeAlphabet != nil {
		config.OTPCodeAlphabet = *c.OTPCodeAlphabet
	}
	if c.OTPCodeLength != nil {
		config.OTPCodeLength = *c.OTPCodeLength
	}
	if c.OTPExpiration != nil {
		config.OTPExpiration = c.OTPExpiration.Duration
	}
	if c.HashTimeCost != nil {
		config.HashTimeCost = *c.HashTimeCost
	}
	if c.RandomDelayMax != nil {
		config.RandomDelayMax = c.RandomDelayMax.Duration
	}
	if c.HandshakeSecret != nil {
		config.HandshakeSecret = *c.HandshakeSecret
	}
	if c.HandshakeTokenLength != nil {
		config.HandshakeTokenLength = *c.HandshakeTokenLength
	}
	if c.HandshakeInterval != nil {
		config.HandshakeInterval = c.HandshakeInterval.Duration
	}
	if c.HandshakeTimeout != nil {
		config.HandshakeTimeout = c.HandshakeTimeout.Duration
	}
	if c.SMTPAddr != nil {
		config.SMTPAddr = *c.SMTPAddr
	}
	if c.SMTPFrom != nil {
		config.SMTPFrom = *c.SMTPFrom
	}
}
