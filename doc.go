// Package tapnomad is a data-extraction connector for Nomad-style cluster
// schedulers. It reads jobs, allocations, nodes, and deployments over the
// scheduler's HTTP API and emits them as an ordered SCHEMA/RECORD/STATE
// message stream with crash-resumable replication bookmarks.
//
// The packages compose as follows:
//
//   - pkg/catalog   stream definitions, schema registry, user selection
//   - pkg/client    paginating REST adapter with retry and rate limiting
//   - pkg/streams   full-table and incremental extraction strategies
//   - pkg/state     the replication bookmark document
//   - pkg/singer    the line-oriented output protocol
//   - pkg/tapsync   the per-run orchestrator
//
// The cmd/tap-nomad binary exposes discover and sync modes.
package tapnomad
