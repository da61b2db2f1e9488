// Package sqooler is the coordination backend for a compute-job-as-a-service
// platform: clients submit experiment payloads that are executed by pluggable
// simulation backends, with jobs, status, results, and backend configuration
// persisted through interchangeable storage services.
//
// sqooler is designed as a library, not a service. Import it, configure a
// storage driver, register spoolers, and run the worker loop.
//
// # Quick Start
//
//	drv, err := local.New("/var/lib/sqooler", "default")
//	provider := storage.NewProvider(drv)
//
//	sp, err := pipeline.New("singlequdit", instructions, 1, genCircuit)
//	loop, err := worker.NewLoop(provider, map[string]*pipeline.Spooler{"singlequdit": sp})
//
//	loop.PublishBackends(ctx)
//	loop.Run(ctx, 0)
//
// # Architecture
//
// sqooler follows a composable storage pattern: a record-store primitive
// (storage.Driver) is implemented once per physical medium (local
// filesystem, MongoDB, or a MinIO-compatible blob store) and a single
// generic domain layer (storage.Provider) builds the job queue, backend
// configuration, status, result, and signing behavior on top of it.
//
// Records that a backend chooses to sign are wrapped in Ed25519 JWS
// envelopes (package sign); verification runs against the backend's
// published public JWK.
package sqooler
