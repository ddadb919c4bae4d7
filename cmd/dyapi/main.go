// Command dyapi runs the configuration-driven API gateway.
//
// Routes, handler descriptors, parameter bindings and business rules are
// read from Postgres (DATABASE_URL, schema GATEWAY_DB_SCHEMA) or, for local
// runs, from a YAML fixtures file (FIXTURES_FILE). When REDIS_ADDR is set,
// configuration reads are cached in Redis for CACHE_TTL.
//
// Handler types come from GRPC_UPSTREAMS and HTTP_UPSTREAMS, each a list of
// name=target pairs, e.g. GRPC_UPSTREAMS=accounts=localhost:9090.
package main

import (
	"os"

	"github.com/waploaj/DyAPI/cmd/dyapi/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
