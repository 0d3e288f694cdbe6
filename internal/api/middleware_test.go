package api

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClientLimiter_EvictsIdleClients(t *testing.T) {
	l := newClientLimiter(1, 1)
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		l.get(ip)
	}
	assert.Equal(t, 3, l.size())

	now = now.Add(limiterIdle / 2)
	l.get("10.0.0.1")
	assert.Equal(t, 3, l.size())

	// .2 and .3 have now been idle a full window; .1 only half of one.
	now = now.Add(limiterIdle / 2)
	l.get("10.0.0.4")
	assert.Equal(t, 2, l.size())

	now = now.Add(limiterIdle)
	l.get("10.0.0.5")
	assert.Equal(t, 1, l.size())
}

func TestClientLimiter_KeepsBucketWhileActive(t *testing.T) {
	l := newClientLimiter(1, 1)
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	first := l.get("10.0.0.1")
	now = now.Add(limiterIdle - time.Second)
	assert.Same(t, first, l.get("10.0.0.1"))
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.7:5123"
	assert.Equal(t, "192.0.2.7", clientKey(req))

	req.RemoteAddr = "192.0.2.7"
	assert.Equal(t, "192.0.2.7", clientKey(req))
}
