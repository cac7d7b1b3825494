// Package main hosts the bidwatch entrypoint.
//
// Architecture overview:
//   - Sources: internal/source adapts each procurement portal (China Telecom, China Tower, China Post) to
//     bid.Source. Each adapter loads the portal's landing page for session cookies, posts one query per
//     category and stops scanning a page at the first record older than the window unless full_scan is set.
//   - HTTP policy: internal/httpclient retries connection failures and 500/502/503/504 with exponential
//     backoff, rotates user agents, keeps one cookie jar per portal and rate limits per host.
//   - Cycle: internal/scheduler walks keywords (main, then others) across sources, checks each candidate
//     against the dedup store, drops titles containing an exclusion term, and sends one message per keyword
//     through internal/notify. Records stay admitted even when delivery fails.
//   - Memory: internal/dedupe keeps notified records in insertion order and trims to the newest 6 once it
//     holds 20, once per cycle.
//   - Plumbing: Viper loads config from file and BIDWATCH_* env (plus the legacy key_main/key_test); zap
//     logs carry cycle_id, keyword and source; Prometheus metrics and probes are served by internal/api
//     when metrics.addr is set.
//
// Quick checklist:
//   - Export BIDWATCH_NOTIFY_KEY (or key_main); optionally BIDWATCH_NOTIFY_TEST_KEY (or key_test) for the
//     ops webhook that receives startup, shutdown and failure messages.
//   - Provide keyword.json: {"keyword": {"main": [...], "others": [...], "not": [...]}}.
//   - Run: bidwatch watch --mode once, or bidwatch search 培训 to preview matches without notifying.
package main
