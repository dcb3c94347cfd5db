// Package connector assembles a ready-to-use sink from one configuration.
//
// # Architecture Overview
//
// The connector package is organized into several sub-packages:
//
//   - base: BaseDestination, embedded by every destination. It provides the
//     name-scoped logger and tracer, write deadlines and ordered cleanup.
//
//   - destinations: the backends (BigQuery, Bigtable, Redis, HTTP and log).
//     Each one turns parsed messages into backend records and reports which
//     records the backend rejected.
//
//   - registry: a factory registry. Destinations self-register during
//     initialization under the name used in config.Config.Sink.
//
// # Example Usage
//
//	cfg, err := config.LoadConfig("sink.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	conn, err := connector.Open(ctx, cfg, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer conn.Close()
//
//	resp := conn.Push(ctx, batch)
//	for _, idx := range resp.Indices() {
//		info, _ := resp.Get(idx)
//		fmt.Println(idx, info.Type)
//	}
//
// When the input is protobuf, Open fetches descriptors from the schema
// registry and keeps refreshing them in the background. A changed descriptor
// set rebuilds the parser and the record builder; pushes already running keep
// the snapshot they started with.
package connector
