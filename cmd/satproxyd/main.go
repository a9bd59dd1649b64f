// Command satproxyd runs the satellite-link QUIC proxy's Demultiplexer
// against a TOML config file, grounded on dtn7-go's cmd/dtnd entry point:
// one required config-path argument, block until SIGINT, then shut down.
// Argument parsing and process lifecycle beyond that are explicit
// non-goals, so neither gets more than this.
package main

import (
	"net/http"
	"os"
	"os/signal"

	satproxy "github.com/edonshumolli/satellite-quic-proxy"
	"github.com/edonshumolli/satellite-quic-proxy/conn"
	"github.com/edonshumolli/satellite-quic-proxy/demux"
	"github.com/edonshumolli/satellite-quic-proxy/internal/utils"
	"github.com/edonshumolli/satellite-quic-proxy/metrics"
	"github.com/edonshumolli/satellite-quic-proxy/offload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsListenAddress serves the Prometheus /metrics endpoint, separate
// from the proxy's own UDP listen address.
const metricsListenAddress = ":9090"

// waitSigint blocks until a SIGINT arrives.
func waitSigint() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
}

func main() {
	log := utils.NewLogger()

	if len(os.Args) != 2 {
		log.Fatalf("usage: %s configuration.toml", os.Args[0])
	}

	conf, err := satproxy.LoadConfig(os.Args[1])
	if err != nil {
		log.WithError(err).Fatal("satproxyd: failed to load config")
	}
	utils.SetLogLevelName(conf.Logging.Level)

	reg := prometheus.NewRegistry()
	metricsReg := metrics.NewRegistry(reg)
	go serveMetrics(reg, log)

	var transport offload.Transport = offload.NilTransport{}
	if conf.Accelerator.Enabled && conf.Accelerator.DialTarget != "" {
		transport = offload.NewTCPTransport(conf.Accelerator.DialTarget, conf.Accelerator.DialTimeout())
	}
	dispatcher := offload.New(transport, metricsReg, conf.Accelerator.RequestTimeout())

	connOpts := conn.Options{
		AdaptiveRTO:               conf.Timing.AdaptiveRTO,
		RetransmitBurstsPerSecond: conf.Timing.RetransmitBurstsPerSecond,
	}

	d, err := demux.New(conf.Listen.Address, dispatcher, metricsReg, nil, connOpts)
	if err != nil {
		log.WithError(err).Fatal("satproxyd: failed to bind listen address")
	}

	go func() {
		if err := d.Run(); err != nil {
			log.WithError(err).Error("satproxyd: demultiplexer loop exited")
		}
	}()

	log.WithField("listen", conf.Listen.Address).Info("satproxyd: running")
	waitSigint()
	log.Info("satproxyd: shutting down")

	if err := d.Close(); err != nil {
		log.WithError(err).Warn("satproxyd: error closing socket")
	}
	stats := d.Stats()
	log.WithField("active_connections", stats.ActiveConnections).Info("satproxyd: stopped")
}

func serveMetrics(reg *prometheus.Registry, log utils.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(metricsListenAddress, mux); err != nil {
		log.WithError(err).Warn("satproxyd: metrics server exited")
	}
}
