// Package config holds the configuration of a sink connector.
//
// One Config carries the input decoding settings, the schema registry, the
// metadata columns and one section per backend. Only the section selected by
// Config.Sink is validated and used.
//
// # Loading
//
//	cfg, err := config.LoadConfig("connector.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// LoadConfig reads the file, applies defaults and validates the result.
//
// # Environment Variable Substitution
//
// Values may reference the environment:
//
//	redis:
//	  password: ${REDIS_PASSWORD}
//	  addrs: ["${REDIS_ADDR:-localhost:6379}"]
//
// The CLI additionally binds NEBULA_SINK_* variables and flags through viper.
//
// # Example
//
//	name: orders-to-bigquery
//	sink: bigquery
//	input:
//	  format: proto
//	  schema: shop.v1.Order
//	registry:
//	  urls: ["gs://schemas/shop.desc"]
//	  refresh_interval: 5m
//	metadata:
//	  columns: ["message_offset:integer", "message_topic:string"]
//	  namespace: kafka
//	bigquery:
//	  project_id: my-project
//	  dataset: shop
//	  table: orders
//	  partition_key: created_at
//	  cluster_keys: [customer_id]
package config
