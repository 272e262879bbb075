// Package metrics provides publish metrics for notesync.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics collection needs no nil checks at call sites:
//
//	pipeline := publish.NewPipeline(client, ids, prep, publish.Options{
//	    Recorder: metrics.NewPrometheusRecorder(registry),
//	})
//
// The daemon serves the registry via HTTPHandler when metrics.listen_addr is set.
package metrics
