// Package destinations links every built-in destination into the binary.
// Each destination registers itself with the connector registry from init.
package destinations

import (
	// Import all destinations to trigger init() registration
	_ "github.com/ajitpratap0/nebula-sink/pkg/connector/destinations/bigquery"
	_ "github.com/ajitpratap0/nebula-sink/pkg/connector/destinations/bigtable"
	_ "github.com/ajitpratap0/nebula-sink/pkg/connector/destinations/httpsink"
	_ "github.com/ajitpratap0/nebula-sink/pkg/connector/destinations/logsink"
	_ "github.com/ajitpratap0/nebula-sink/pkg/connector/destinations/redis"
)
