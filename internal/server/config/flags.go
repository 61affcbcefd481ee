package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/boardforge/internal/flagx"
)

const day = 24 * time.Hour

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   access token signing key
//	-i string   access token issuer
//	-l string   access token audience
//	-t int      access token validity, minutes
//	-r int      refresh token validity, days
//	-k int      team role cache TTL, minutes
//	-v string   log level
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-d", "-s", "-i", "-l", "-t", "-r", "-k", "-v", "-u", "-p", "-b", "-g", "-e",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SigningKey, "s", config.SigningKey, "access token signing key")
	fs.StringVar(&config.Issuer, "i", config.Issuer, "access token issuer")
	fs.StringVar(&config.Audience, "l", config.Audience, "access token audience")

	accessMinutes := fs.Int("t", int(config.AccessTokenValidityDuration/time.Minute), "access token validity (in minutes)")
	refreshDays := fs.Int("r", int(config.RefreshTokenValidityDuration/day), "refresh token validity (in days)")
	roleCacheMinutes := fs.Int("k", int(config.RoleCacheTTL/time.Minute), "team role cache TTL (in minutes)")

	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// Integer flags cannot express "30s" or "36h", so only flags given on the
	// command line replace what defaults and the JSON file produced.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = time.Duration(*accessMinutes) * time.Minute
		case "r":
			config.RefreshTokenValidityDuration = time.Duration(*refreshDays) * day
		case "k":
			config.RoleCacheTTL = time.Duration(*roleCacheMinutes) * time.Minute
		}
	})
}
