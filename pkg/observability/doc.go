/*
Package observability provides tools for monitoring and introspecting a router.

Metrics is a router plugin exporting Prometheus counters and histograms for
transitions and state activity. GenerateMermaid renders the state tree as a
Mermaid flowchart, optionally highlighting the active path.
*/
package observability
