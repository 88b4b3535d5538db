// Command archiver moves finished requests and queues out of the live staging
// database into its history tables, then purges them from the live side.
//
// Usage:
//
//	# Archive everything that ended more than a day ago
//	archiver run
//
//	# Keep a week, smaller batches, also write an SQL dump
//	archiver run --days 7 --maxrow 500 --mode both --dump-path /var/lib/enq/archive.sql
//
//	# Show what would be archived
//	archiver run --dry-run
//
//	# Run on a schedule and serve /healthz, /metrics and /runs
//	archiver serve
package main

import "os"

func main() {
	os.Exit(Execute())
}
