package redis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitMemberUniquePerRequest(t *testing.T) {
	const now = int64(1756700000000000)

	a := rateLimitMember(now)
	b := rateLimitMember(now)

	// Two requests in the same microsecond must produce distinct sorted-set
	// members, or the window undercounts.
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "1756700000000000-"))
	assert.True(t, strings.HasPrefix(b, "1756700000000000-"))
}

func TestSlidingWindowScriptUsesRequestMember(t *testing.T) {
	assert.Contains(t, slidingWindowLua, "ZADD', key, now, ARGV[4]")
}
