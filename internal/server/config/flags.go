package config

import (
	"flag"
	"strings"

	"github.com/dmitrijs2005/manylla-sync/internal/flagx"
)

// parseFlags overlays command-line flags onto config.
//
//	-a string   HTTP bind address (e.g. ":8080")
//	-g string   gRPC health bind address
//	-d string   PostgreSQL DSN
//	-m string   store backend: postgres | memory
//	-s string   admin JWT secret
//	-l string   log level
//	-x string   comma-separated health-exempt CIDRs
//	-b string   S3 archive bucket (empty disables archiving)
//	-e string   S3 base endpoint
//
// Other arguments are ignored, so the config flag and unrelated tooling
// flags can share the command line.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-d", "-m", "-s", "-l", "-x", "-b", "-e"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port to run server")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "gRPC health address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.Store, "m", config.Store, "store backend (postgres|memory)")
	fs.StringVar(&config.AdminSecret, "s", config.AdminSecret, "admin JWT secret")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	exempt := fs.String("x", strings.Join(config.HealthExemptCIDRs, ","), "health exempt CIDRs")
	fs.StringVar(&config.ArchiveBucket, "b", config.ArchiveBucket, "S3 archive bucket")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.HealthExemptCIDRs = nil
	for _, c := range strings.Split(*exempt, ",") {
		if c = strings.TrimSpace(c); c != "" {
			config.HealthExemptCIDRs = append(config.HealthExemptCIDRs, c)
		}
	}
	return nil
}
