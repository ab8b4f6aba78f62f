// Package collector implements a Prometheus collector for NEP utility usage.
//
// Collection is pull-based: every scrape calls Collect, which obtains a token,
// queries the usage endpoint once per tracked service and emits
//   - nep_usage{service,premise}: latest reading per service
//   - nep_api_up: 1 when every service fetch succeeded, 0 otherwise
//
// A scrape never fails because of the upstream API. Failed services are left
// out and nep_api_up drops to 0; nep_api_up is always emitted.
package collector
