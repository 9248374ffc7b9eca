package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(qualityGateTotal.WithLabelValues("failed"))
	IncQualityGate(false)
	assert.Equal(t, before+1, testutil.ToFloat64(qualityGateTotal.WithLabelValues("failed")))

	beforeCalls := testutil.ToFloat64(modelCallsTotal.WithLabelValues("verify", "m1", "ok"))
	IncModelCall("verify", "m1", "ok")
	IncModelCall("verify", "m1", "ok")
	assert.Equal(t, beforeCalls+2, testutil.ToFloat64(modelCallsTotal.WithLabelValues("verify", "m1", "ok")))
}

func TestHTTPRequestsCollapseStatus(t *testing.T) {
	c := httpRequestsTotal.WithLabelValues("/api/v1/analyze", "POST", "4xx")
	before := testutil.ToFloat64(c)
	IncHTTPRequest("/api/v1/analyze", "POST", 429)
	IncHTTPRequest("/api/v1/analyze", "POST", 400)
	assert.Equal(t, before+2, testutil.ToFloat64(c))

	unmatched := httpRequestsTotal.WithLabelValues("unmatched", "GET", "4xx")
	before = testutil.ToFloat64(unmatched)
	IncHTTPRequest("", "GET", 404)
	assert.Equal(t, before+1, testutil.ToFloat64(unmatched))
}
