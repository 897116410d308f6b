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

package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPoolCounters(t *testing.T) {
	beforeSpawn := testutil.ToFloat64(workersSpawnedTotal)
	beforeReap := testutil.ToFloat64(workersReapedTotal)

	ObserveSpawn()
	ObserveSpawn()
	ObserveReap()
	SetWorkersLive(7)

	if delta := testutil.ToFloat64(workersSpawnedTotal) - beforeSpawn; delta != 2 {
		t.Fatalf("workersSpawnedTotal delta = %v, want 2", delta)
	}
	if delta := testutil.ToFloat64(workersReapedTotal) - beforeReap; delta != 1 {
		t.Fatalf("workersReapedTotal delta = %v, want 1", delta)
	}
	if got := testutil.ToFloat64(workersLive); got != 7 {
		t.Fatalf("workersLive = %v, want 7", got)
	}
}

func TestResponseClasses(t *testing.T) {
	before2xx := testutil.ToFloat64(responsesTotal.WithLabelValues("2xx"))
	before4xx := testutil.ToFloat64(responsesTotal.WithLabelValues("4xx"))

	ObserveResponse(200)
	ObserveResponse(404)
	ObserveResponse(403)

	if delta := testutil.ToFloat64(responsesTotal.WithLabelValues("2xx")) - before2xx; delta != 1 {
		t.Fatalf("2xx delta = %v, want 1", delta)
	}
	if delta := testutil.ToFloat64(responsesTotal.WithLabelValues("4xx")) - before4xx; delta != 2 {
		t.Fatalf("4xx delta = %v, want 2", delta)
	}
}

func TestReloadCounters(t *testing.T) {
	beforeOK := testutil.ToFloat64(moduleReloadsTotal)
	beforeErr := testutil.ToFloat64(moduleReloadErrorsTotal)

	ObserveReload(true)
	ObserveReload(false)

	if delta := testutil.ToFloat64(moduleReloadsTotal) - beforeOK; delta != 1 {
		t.Fatalf("reload ok delta = %v, want 1", delta)
	}
	if delta := testutil.ToFloat64(moduleReloadErrorsTotal) - beforeErr; delta != 1 {
		t.Fatalf("reload error delta = %v, want 1", delta)
	}
}
