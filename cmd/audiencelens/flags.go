package main

import (
	"strings"
	"time"

	"github.com/guillermoBallester/audiencelens/internal/config"
	"github.com/spf13/pflag"
)

// flagValues holds raw flag values; overrides turns the ones the user set
// into config.Overrides.
type flagValues struct {
	catalog         string
	policyFile      string
	databaseURL     string
	sampleSize      int
	logLevel        string
	transport       string
	httpAddr        string
	httpBearerToken string
	reloadInterval  time.Duration
	otel            bool
	dryRun          bool
	auditLog        string
	output          string

	poolMaxConns        int32
	poolMinConns        int32
	poolMaxConnLifetime time.Duration
}

func bindCatalogFlags(fs *pflag.FlagSet, v *flagValues) {
	fs.StringVar(&v.catalog, "catalog", "", "catalog file path or s3://bucket/key URL")
	fs.StringVar(&v.policyFile, "policy-file", "", "path to policy YAML")
	fs.StringVar(&v.logLevel, "log-level", "", "log level: debug, info, warn, error")
}

func bindServeFlags(fs *pflag.FlagSet, v *flagValues) {
	bindCatalogFlags(fs, v)
	fs.StringVar(&v.transport, "transport", "", "MCP transport: stdio or http")
	fs.StringVar(&v.httpAddr, "http-addr", "", "listen address for the http transport")
	fs.StringVar(&v.httpBearerToken, "http-bearer-token", "", "bearer token required by the http transport")
	fs.DurationVar(&v.reloadInterval, "reload-interval", 0, "reload the catalog on this interval (0 disables)")
	fs.BoolVar(&v.otel, "otel", false, "enable OpenTelemetry tracing and metrics")
	fs.BoolVar(&v.dryRun, "dry-run", false, "load catalog and policy, log a summary, and exit")
	fs.StringVar(&v.auditLog, "audit-log", "", "append NDJSON audit records to this file")
}

func bindSnapshotFlags(fs *pflag.FlagSet, v *flagValues) {
	fs.StringVar(&v.databaseURL, "database-url", "", "postgres:// or mysql:// connection string")
	fs.IntVar(&v.sampleSize, "sample-size", 0, "sample rows captured per table")
	fs.StringVarP(&v.output, "output", "o", "", "catalog file to write (stdout when empty)")
	fs.StringVar(&v.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.Int32Var(&v.poolMaxConns, "pool-max-conns", 0, "maximum pool connections")
	fs.Int32Var(&v.poolMinConns, "pool-min-conns", 0, "minimum pool connections")
	fs.DurationVar(&v.poolMaxConnLifetime, "pool-max-conn-lifetime", 0, "maximum connection lifetime")
}

func (v *flagValues) overrides(fs *pflag.FlagSet) config.Overrides {
	o := config.Overrides{
		OTelEnabled: v.otel,
		DryRun:      v.dryRun,
		AuditLog:    v.auditLog,
		Output:      v.output,
	}

	if fs.Changed("catalog") {
		if strings.HasPrefix(v.catalog, "s3://") {
			o.CatalogURL = &v.catalog
		} else {
			o.CatalogFile = &v.catalog
		}
	}
	setString(fs, "policy-file", &o.PolicyFile, v.policyFile)
	setString(fs, "database-url", &o.DatabaseURL, v.databaseURL)
	setString(fs, "log-level", &o.LogLevel, v.logLevel)
	setString(fs, "transport", &o.Transport, v.transport)
	setString(fs, "http-addr", &o.HTTPAddr, v.httpAddr)
	setString(fs, "http-bearer-token", &o.HTTPBearerToken, v.httpBearerToken)

	if fs.Changed("sample-size") {
		o.SampleSize = &v.sampleSize
	}
	if fs.Changed("reload-interval") {
		o.ReloadInterval = &v.reloadInterval
	}
	if fs.Changed("pool-max-conns") {
		o.PoolMaxConns = &v.poolMaxConns
	}
	if fs.Changed("pool-min-conns") {
		o.PoolMinConns = &v.poolMinConns
	}
	if fs.Changed("pool-max-conn-lifetime") {
		o.PoolMaxConnLifetime = &v.poolMaxConnLifetime
	}
	return o
}

func setString(fs *pflag.FlagSet, name string, dst **string, val string) {
	if fs.Lookup(name) != nil && fs.Changed(name) {
		*dst = &val
	}
}

// parseFlags parses serve arguments into overrides.
func parseFlags(args []string) (config.Overrides, error) {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	var v flagValues
	bindServeFlags(fs, &v)
	if err := fs.Parse(args); err != nil {
		return config.Overrides{}, err
	}
	return v.overrides(fs), nil
}
