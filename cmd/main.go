package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/quadmesh/featureflag"
	qhttp "github.com/aukilabs/quadmesh/http"
	"github.com/aukilabs/quadmesh/mesh"
	"github.com/aukilabs/quadmesh/models"
	"github.com/aukilabs/quadmesh/report"
	"github.com/aukilabs/quadmesh/smoketest"
	"github.com/aukilabs/quadmesh/voxel"
	qwebsocket "github.com/aukilabs/quadmesh/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const reportQueueSize = 32

var (
	// The quadmesh version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "quadmesh_info",
		Help:        "Quadmesh information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"QUADMESH_ADDR"                 help:"Listening address for client connections."`
	AdminAddr          string        `cli:""        env:"QUADMESH_ADMIN_ADDR"           help:"Admin listening address."`
	MeshFile           string        `cli:""        env:"QUADMESH_MESH_FILE"            help:"An STL file loaded at startup."`
	Lattice            string        `cli:""        env:"QUADMESH_LATTICE"              help:"The default voxelization lattice (NXxNYxNZ)."`
	LogLevel           string        `cli:""        env:"QUADMESH_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"QUADMESH_LOG_INDENT"           help:"Indent logs."`
	Capacity           int           `cli:",hidden" env:"QUADMESH_CAPACITY"             help:"The number of triangles a quadtree leaf holds before subdividing."`
	MaxDepth           int           `cli:",hidden" env:"QUADMESH_MAX_DEPTH"            help:"The quadtree depth limit. 0 leaves preloaded meshes unbounded and uploads at the default limit."`
	MaxLattice         int           `cli:",hidden" env:"QUADMESH_MAX_LATTICE"          help:"The largest number of lattice points a mesh can be voxelized with."`
	MaxPoints          int           `cli:",hidden" env:"QUADMESH_MAX_POINTS"           help:"The number of points accepted in a websocket classify request."`
	MaxUploadSize      int64         `cli:",hidden" env:"QUADMESH_MAX_UPLOAD_SIZE"      help:"The maximum size in bytes of an uploaded STL file."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"QUADMESH_CLIENT_IDLE_TIMEOUT"  help:"Time until an idle client will be disconnected"`
	LogSummaryInterval time.Duration `cli:",hidden" env:"QUADMESH_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by connection."`
	ReportEndpoint     string        `cli:",hidden" env:"QUADMESH_REPORT_ENDPOINT"      help:"Endpoint to where smoke test results are posted."`
	Events             eventsConfig  `cli:",hidden" env:"-"                             help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"QUADMESH_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                             help:"Show version."`
	Help               bool          `cli:""        env:"-"                             help:"Show help."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"QUADMESH_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"QUADMESH_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"QUADMESH_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"QUADMESH_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		Lattice:            "32x32x32",
		LogLevel:           logs.InfoLevel.String(),
		MaxDepth:           voxel.DefaultMaxDepth,
		MaxLattice:         voxel.DefaultMaxLatticeSize,
		MaxPoints:          qwebsocket.DefaultMaxPoints,
		MaxUploadSize:      qhttp.DefaultMaxUploadSize,
		ClientIdleTimeout:  time.Minute * 5,
		LogSummaryInterval: time.Minute,
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts the quadmesh voxelization server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	lattice, err := validateConfig(conf)
	if err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	transport := metrics.HTTPTransport(http.DefaultTransport)

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     transport,
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "quadmesh",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	featureFlags := featureflag.New(conf.FeatureFlags)

	voxelOpts := voxel.Options{
		Capacity:       conf.Capacity,
		MaxDepth:       conf.MaxDepth,
		MaxLatticeSize: conf.MaxLattice,
	}
	featureFlags.IfSet(featureflag.FlagEnableQueryTrace, func() {
		voxelOpts.Trace = true
	})

	meshes := &models.MeshStore{}

	var ready atomic.Bool
	readinessCheck := ready.Load

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer ready.Store(true)

		if conf.MeshFile == "" {
			return
		}
		if err := preloadMesh(meshes, conf.MeshFile, lattice, voxelOpts); err != nil {
			logs.Fatal(errors.New("preloading mesh failed").Wrap(err))
		}
	}()

	var service http.ServeMux
	service.HandleFunc("/health", qhttp.HandleHealthCheck)
	service.HandleFunc("/version", qhttp.HandleVersion(version))
	service.HandleFunc("/ready", qhttp.HandleReadyCheck(readinessCheck))

	var smokeTestOpts smoketest.Options
	if conf.ReportEndpoint != "" {
		reportHandler := report.ReportHandler{
			Endpoint:   conf.ReportEndpoint,
			Transport:  transport,
			ResultChan: make(chan smoketest.Results, reportQueueSize),
		}
		reportHandler.HandleResults(ctx)
		smokeTestOpts.SendResult = reportHandler.Send
	}
	service.HandleFunc("POST /smoke-test", smoketest.HandleSmokeTest(ctx, smokeTestOpts))

	meshAPI := qhttp.MeshAPI{
		Store:         meshes,
		Lattice:       lattice,
		Options:       voxelOpts,
		MaxUploadSize: conf.MaxUploadSize,
		FeatureFlags:  featureFlags,
	}
	meshAPI.Register(&service)

	featureFlags.IfNotSet(featureflag.FlagDisableWebsocket, func() {
		service.Handle("/ws", websocket.Server{
			Handler: func(conn *websocket.Conn) {
				defer conn.Close()

				var h qwebsocket.Handler = &qwebsocket.ClassifyHandler{
					ClientIdleTimeout: conf.ClientIdleTimeout,
					Meshes:            meshes,
					MaxPoints:         conf.MaxPoints,
				}
				h = qwebsocket.HandlerWithLogs(h, conf.LogSummaryInterval)
				h = qwebsocket.HandlerWithMetrics(h)
				defer h.Close()

				qwebsocket.Handle(ctx, conn, h)
			},
		})

		service.Handle("/ping", websocket.Server{
			Handler: func(ws *websocket.Conn) {
				defer ws.Close()
				io.Copy(ws, ws)
			},
		})
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", qhttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", qhttp.HandleReadyCheck(readinessCheck))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("lattice", lattice.String()).
		WithTag("feature_flags", conf.FeatureFlags).
		Info("starting quadmesh server")

	qhttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(qhttp.HandleWithCORS(&service),
			qhttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)

	wg.Wait()
}

func preloadMesh(meshes *models.MeshStore, path string, lattice voxel.Lattice, opts voxel.Options) error {
	m, err := mesh.LoadSTL(path)
	if err != nil {
		return err
	}

	v, err := voxel.New(m, m.Bounds(), lattice, opts)
	if err != nil {
		return errors.New("creating voxelizer failed").
			WithTag("path", path).
			Wrap(err)
	}

	model := models.NewMesh(m.Name, v)
	meshes.Add(model)

	logs.WithTag("mesh_id", model.ID).
		WithTag("name", model.Name).
		WithTag("triangles", len(m.Triangles)).
		WithTag("index", v.Stats()).
		Info("mesh preloaded")
	return nil
}

func validateConfig(conf config) (voxel.Lattice, error) {
	lattice, err := voxel.ParseLattice(conf.Lattice)
	if err != nil {
		return voxel.Lattice{}, errors.New("invalid lattice").Wrap(err)
	}

	if conf.MaxLattice <= 0 {
		return voxel.Lattice{}, errors.New("max lattice must be positive").
			WithTag("max_lattice", conf.MaxLattice)
	}

	if err := lattice.CheckSize(conf.MaxLattice); err != nil {
		return voxel.Lattice{}, errors.New("invalid lattice").Wrap(err)
	}

	if conf.Capacity < 0 {
		return voxel.Lattice{}, errors.New("capacity must not be negative").
			WithTag("capacity", conf.Capacity)
	}

	if conf.MaxDepth < 0 {
		return voxel.Lattice{}, errors.New("max depth must not be negative").
			WithTag("max_depth", conf.MaxDepth)
	}

	if conf.MeshFile != "" {
		if _, err := os.Stat(conf.MeshFile); err != nil {
			return voxel.Lattice{}, errors.New("invalid mesh file").
				WithTag("path", conf.MeshFile).
				Wrap(err)
		}
	}

	return lattice, nil
}
