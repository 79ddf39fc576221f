package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/config"
	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/logging"
	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/metrics"
	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/metrics/datadog"
	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/metrics/prompush"
	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/storage"

	// register all backends with the storage factory.
	// config specifies which to use but we build in support for all of them.
	_ "github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/storage/all"
)

// main loads the sources config, optionally initializes a metrics backend,
// and executes one batch run across every configured source.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		dogstatsdAddrFlg  string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/sources.yml", "sources config YAML path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (pushgateway, datadog, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&dogstatsdAddrFlg, "dogstatsd-addr", "", "DogStatsD address, e.g. 127.0.0.1:8125 (overrides env DOGSTATSD_ADDR)")
	verbose := flag.Bool("v", false, "enable verbose logs")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")

	flag.Parse()

	log := logging.New(*verbose)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.WithField("config", cfgPath).Fatal("configuration is invalid")
	}

	// If validate flag is set, only validate the configuration and exit.
	if validate {
		log.WithField("config", cfgPath).Info("configuration is valid")
		return
	}

	dsn, err := cfg.DSN()
	if err != nil {
		log.WithError(err).Fatal("resolve database URL")
	}

	runID := uuid.NewString()
	logger := log.WithField("run_id", runID)

	initMetrics(metricsBackendFlg, pushGatewayURLFlg, dogstatsdAddrFlg, logger)
	defer func() {
		if err := metrics.Flush(); err != nil {
			logger.WithError(err).Warn("metrics flush failed")
		}
	}()

	ctx := context.Background()

	repo, err := newRepositoryFn(ctx, storage.Config{Kind: cfg.StorageKind(), DSN: dsn})
	if err != nil {
		logger.WithError(err).Fatal("init storage")
	}
	defer repo.Close()

	runner := &Runner{
		Log:         logger,
		Repo:        repo,
		RejectTable: cfg.RejectTable(),
	}
	if err := runner.Run(ctx, cfg); err != nil {
		logger.WithError(err).Error("run finished with failures")
		if ferr := metrics.Flush(); ferr != nil {
			logger.WithError(ferr).Warn("metrics flush failed")
		}
		os.Exit(1)
	}
	logger.Info("run completed")
}

// initMetrics installs the selected metrics backend. Flag wins over the
// matching environment variable; a backend init failure downgrades to the
// nop backend rather than aborting the run.
func initMetrics(backendName, gatewayURL, dogstatsdAddr string, log logrus.FieldLogger) {
	switch backendName {
	case "pushgateway":
		if gatewayURL == "" {
			gatewayURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gatewayURL == "" {
			gatewayURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend("fashion_retail_etl", gatewayURL)
		if err != nil {
			log.Warnf("metrics: pushgateway backend init failed: %v; metrics disabled", err)
			return
		}
		log.Infof("metrics: pushgateway backend, url=%s", gatewayURL)
		metrics.SetBackend(b)

	case "datadog":
		if dogstatsdAddr == "" {
			dogstatsdAddr = os.Getenv("DOGSTATSD_ADDR")
		}
		if dogstatsdAddr == "" {
			dogstatsdAddr = "127.0.0.1:8125"
		}
		b, err := datadog.NewBackend(datadog.Config{Addr: dogstatsdAddr, Namespace: "etl."})
		if err != nil {
			log.Warnf("metrics: datadog backend init failed: %v; metrics disabled", err)
			return
		}
		log.Infof("metrics: datadog backend, addr=%s", dogstatsdAddr)
		metrics.SetBackend(b)

	case "", "none":
		// metrics disabled; nop backend remains

	default:
		log.Warnf("metrics: unknown backend %q; metrics disabled", backendName)
	}
}
