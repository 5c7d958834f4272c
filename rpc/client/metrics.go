package client

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/sKV/lib/errcode"
	"github.com/VictoriaMetrics/metrics"
)

// recordCall counts a finished call by operation and client code and tracks its
// latency. Rejected calls are counted with a zero duration.
func recordCall(op string, code errcode.Code, took time.Duration) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`skv_client_calls_total{op=%q,code=%q}`, op, code.String())).Inc()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`skv_client_call_duration_seconds{op=%q}`, op)).Update(took.Seconds())
}
