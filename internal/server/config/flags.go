package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/passlink/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   token signing secret (HS256)
//	-t int      signed-token validity, minutes
//	-o int      OTP expiration window, seconds
//	-k string   handshake bootstrap secret
//	-i int      handshake rotation interval, minutes
//	-m string   SMTP address (host:port)
//	-f string   mail From address
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. Duration
// flags are accepted as integers and converted to time.Duration values.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-o", "-k", "-i", "-m", "-f"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "token signing secret")
	fs.StringVar(&config.HandshakeSecret, "k", config.HandshakeSecret, "handshake bootstrap secret")
	fs.StringVar(&config.SMTPAddr, "m", config.SMTPAddr, "SMTP address (host:port)")
	fs.StringVar(&config.SMTPFrom, "f", config.SMTPFrom, "mail From address")

	tokenValidity := fs.Int("t", int(config.TokenValidity.Minutes()), "token_validity (in minutes)")
	otpExpiration := fs.Int("o", int(config.OTPExpiration.Seconds()), "otp_expiration (in seconds)")
	handshakeInterval := fs.Int("i", int(config.HandshakeInterval.Minutes()), "handshake_interval (in minutes)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.TokenValidity = time.Duration(*tokenValidity) * time.Minute
	config.OTPExpiration = time.Duration(*otpExpiration) * time.Second
	config.HandshakeInterval = time.Duration(*handshakeInterval) * time.Minute
}
