// Package admin exposes the queue control surface over HTTP for operators
// and dashboards.
//
// The handler is a thin JSON layer over queue.Service: queue counts, job
// listings, per-job inspection, manual retry of failed jobs, retention
// cleanup, live worker concurrency updates and broadcast-scoped views of the
// same operations. GET /health returns 200 while the worker loop runs and 503
// otherwise, so it can back load balancer checks directly.
//
//	handler, err := admin.NewHandler(service)
//	if err != nil {
//		return err
//	}
//	server := admin.NewServer(cfg)
//	eg.Go(server.Run(ctx, handler.Router()))
package admin
