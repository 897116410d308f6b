// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package telemetry exposes the supervisor's operational counters as
// Prometheus metrics. The collectors are process-global and registered
// eagerly; when no endpoint is started the registration is harmless. Only
// fixed-cardinality labels are used.
package telemetry

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("preforkd.telemetry")

var (
	clientsAcceptedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preforkd_clients_accepted_total",
		Help: "Total TCP connections accepted by the supervisor",
	})
	clientsRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preforkd_clients_rejected_total",
		Help: "Total accepted connections dropped because no worker slot could take them",
	})
	workersSpawnedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preforkd_workers_spawned_total",
		Help: "Total worker processes spawned",
	})
	workersReapedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preforkd_workers_reaped_total",
		Help: "Total worker processes removed from the pool",
	})
	workersLive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "preforkd_workers_live",
		Help: "Worker processes currently in the pool",
	})
	fdTransfersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preforkd_fd_transfers_total",
		Help: "Total client descriptors handed to workers over SCM_RIGHTS",
	})
	responsesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "preforkd_responses_total",
		Help: "Responses emitted by workers, by status class (2xx..5xx)",
	}, []string{"class"})
	moduleReloadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preforkd_module_reloads_total",
		Help: "Successful processing-module reloads",
	})
	moduleReloadErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preforkd_module_reload_errors_total",
		Help: "Failed processing-module reloads",
	})
)

func init() {
	prometheus.MustRegister(
		clientsAcceptedTotal, clientsRejectedTotal,
		workersSpawnedTotal, workersReapedTotal, workersLive,
		fdTransfersTotal, responsesTotal,
		moduleReloadsTotal, moduleReloadErrorsTotal,
	)
}

// ObserveAccept records an accepted TCP connection.
func ObserveAccept() { clientsAcceptedTotal.Inc() }

// ObserveReject records an accepted connection that had to be dropped.
func ObserveReject() { clientsRejectedTotal.Inc() }

// ObserveSpawn records a spawned worker.
func ObserveSpawn() { workersSpawnedTotal.Inc() }

// ObserveReap records a removed worker.
func ObserveReap() { workersReapedTotal.Inc() }

// SetWorkersLive publishes the current pool size.
func SetWorkersLive(n int) { workersLive.Set(float64(n)) }

// ObserveFDTransfer records one descriptor handoff.
func ObserveFDTransfer() { fdTransfersTotal.Inc() }

// ObserveResponse records an emitted response by status class in this
// process's collectors. Workers call it in their own process, which serves
// no /metrics endpoint, so the supervisor's endpoint does not include these
// counts.
func ObserveResponse(status int) {
	class := strconv.Itoa(status/100) + "xx"
	responsesTotal.WithLabelValues(class).Inc()
}

// ObserveReload records a module reload attempt.
func ObserveReload(ok bool) {
	if ok {
		moduleReloadsTotal.Inc()
	} else {
		moduleReloadErrorsTotal.Inc()
	}
}

var endpointOnce sync.Once

// StartMetricsEndpoint serves /metrics on addr in a background goroutine.
// Subsequent calls are no-ops; the endpoint lives for the process.
func StartMetricsEndpoint(addr string) {
	endpointOnce.Do(func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			log.Infof("metrics endpoint listening on %s", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorf("metrics endpoint: %v", err)
			}
		}()
	})
}
