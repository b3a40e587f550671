package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves every collector above plus the default Go runtime and process collectors.
func Handler() http.Handler {
	return promhttp.Handler()
}
