package models

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	meshCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mesh_count",
		Help: "The number of loaded meshes.",
	})

	meshCountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mesh_count_total",
		Help: "The total number of loaded meshes.",
	})
)

func instrumentIncreaseMeshGauge() {
	meshCount.Inc()
}

func instrumentDecreaseMeshGauge() {
	meshCount.Dec()
}

func instrumentCountMesh() {
	meshCountTotal.Inc()
}
