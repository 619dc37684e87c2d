package voxel

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	meshLabel = "mesh"
	flagLabel = "flag"
)

var (
	voxelTrianglesInserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxel_triangles_inserted",
		Help: "The number of triangles indexed by voxelizers.",
	}, []string{meshLabel})

	voxelTrianglesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxel_triangles_rejected",
		Help: "The number of triangles lying outside the voxelization bounds.",
	}, []string{meshLabel})

	voxelClassifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxel_classifications",
		Help: "The number of classified points.",
	}, []string{meshLabel, flagLabel})

	voxelCandidates = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voxel_query_candidates",
		Help:    "The number of triangles yielded by a point query.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	}, []string{meshLabel})

	voxelSweepLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "voxel_sweep_latency",
		Help: "The time to classify a full lattice.",
	}, []string{meshLabel})
)

func instrumentTriangles(mesh string, inserted, rejected int) {
	voxelTrianglesInserted.
		With(prometheus.Labels{meshLabel: mesh}).
		Add(float64(inserted))

	voxelTrianglesRejected.
		With(prometheus.Labels{meshLabel: mesh}).
		Add(float64(rejected))
}

func instrumentClassifications(mesh string, f Flag, count int) {
	voxelClassifications.
		With(prometheus.Labels{
			meshLabel: mesh,
			flagLabel: f.String(),
		}).
		Add(float64(count))
}

func instrumentCandidates(mesh string, count int) {
	voxelCandidates.
		With(prometheus.Labels{meshLabel: mesh}).
		Observe(float64(count))
}

func instrumentSweepLatency(mesh string, start time.Time) {
	voxelSweepLatency.
		With(prometheus.Labels{meshLabel: mesh}).
		Observe(time.Since(start).Seconds())
}
