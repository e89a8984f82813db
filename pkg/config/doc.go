/*
Package config loads the YAML surface spec.md §6 names, grounded on the
pack's own config.Load pattern (defaults-struct + yaml.Unmarshal over a
file, missing file tolerated): actor role and policy selection, the
resource-type-to-handler/control wiring, the static peer catalog, the
logical clock controls consumed by pkg/clock, graph- and reservation-
store connection settings, PDP wiring, and the metrics exporter port.

Only the fields this module's shipped components actually consume are
wired end to end (Database.DataDir/CommitBatchSize into pkg/storage and
pkg/kernel, Time.* into pkg/clock, Kafka.* into pkg/transport, PDP.* into
pkg/pdp); Neo4j.* and Database.DSN/Driver describe a real deployment's
surface without a concrete implementation behind them, since the graph
information model and a SQL-backed Store are out of scope.
*/
package config
