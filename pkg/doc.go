// Package pkg provides the core libraries for the dropper plugin manager.
//
// # Overview
//
// Dropper keeps a Minecraft server's plugin directory in sync with a
// declarative manifest (pkg.yml). The pkg directory is organized along
// the pipeline:
//
//  1. [manifest] - pkg.yml parsing and the Name@Constraint specifier form
//  2. [mcver] - version specs, total ordering, and constraint algebra
//  3. [source] - upstream extractors (scraped HTML, JSON APIs) and the
//     priority-merging registry
//  4. [index] - ordered per-plugin version catalogs and best-match queries
//  5. [resolve] - constraint propagation with bounded backtracking
//  6. [plan] - diffing a selection against installed state
//  7. [install] - downloads, verification, and the persisted state file
//
// # Architecture
//
// The typical data flow through dropper:
//
//	pkg.yml manifest
//	         ↓
//	    [resolve] (versions picked across sources via [index] and [source])
//	         ↓
//	    [plan] (install / upgrade / downgrade / remove diff)
//	         ↓
//	    [install] (fetch, verify, write, commit to state)
//	         ↓
//	    plugins/ directory + state file
//
// Supporting packages: [config] for dropper.toml, [httputil] for retrying
// fetches and the TTL metadata cache, [errors] for the coded failure
// taxonomy, and [buildinfo] for ldflags version stamping.
package pkg
