// Package server exposes a runtime over HTTP.
//
//	GET  /healthz        liveness and frame count
//	GET  /state          latest value per (type, producer); ?type= filters
//	GET  /timing         renderer cost model for the current stack
//	GET  /plan           most recent planning decision with reasons
//	PUT  /plan/override  force the planner per axis: {"variant":"binary","merge":"auto"}
//	GET  /stats          bus, pipeline and queue counters
//	GET  /frames         WebSocket stream of encoded frames (when enabled)
//
// Each /frames client is registered as a broadcast consumer under a fresh
// UUID and removed when it disconnects.
package server
