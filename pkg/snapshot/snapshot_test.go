package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDoc = `{
	"syncToken": "1693526400",
	"createDate": "2023-09-01-00-00-00",
	"prefixes": [
		{"ip_prefix": "3.0.0.0/15", "region": "ap-southeast-1", "service": "AMAZON"}
	],
	"ipv6_prefixes": [
		{"ipv6_prefix": "2600:1f00::/24", "region": "us-east-1", "service": "EC2"}
	]
}`

func TestParseDocument(t *testing.T) {
	t.Run("parses a valid document", func(t *testing.T) {
		doc, err := ParseDocument([]byte(validDoc))
		require.NoError(t, err)
		assert.Equal(t, "1693526400", doc.SyncToken)
		assert.Equal(t, "2023-09-01-00-00-00", doc.CreateDate)
		require.Len(t, doc.Prefixes, 1)
		assert.Equal(t, "3.0.0.0/15", doc.Prefixes[0].IPPrefix)
		require.Len(t, doc.IPv6Prefixes, 1)
		assert.Equal(t, "EC2", doc.IPv6Prefixes[0].Service)
	})

	t.Run("accepts empty prefix arrays", func(t *testing.T) {
		doc, err := ParseDocument([]byte(`{"syncToken":"1","createDate":"d","prefixes":[],"ipv6_prefixes":[]}`))
		require.NoError(t, err)
		assert.Empty(t, doc.Prefixes)
		assert.Empty(t, doc.IPv6Prefixes)
	})

	t.Run("rejects missing syncToken", func(t *testing.T) {
		_, err := ParseDocument([]byte(`{"createDate":"d","prefixes":[],"ipv6_prefixes":[]}`))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidDocument)
		assert.Contains(t, err.Error(), "syncToken")
	})

	t.Run("rejects empty syncToken", func(t *testing.T) {
		_, err := ParseDocument([]byte(`{"syncToken":"","createDate":"d","prefixes":[],"ipv6_prefixes":[]}`))
		assert.ErrorIs(t, err, ErrInvalidDocument)
	})

	t.Run("rejects missing createDate", func(t *testing.T) {
		_, err := ParseDocument([]byte(`{"syncToken":"1","prefixes":[],"ipv6_prefixes":[]}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "createDate")
	})

	t.Run("rejects missing prefix arrays", func(t *testing.T) {
		_, err := ParseDocument([]byte(`{"syncToken":"1","createDate":"d","ipv6_prefixes":[]}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "prefixes")

		_, err = ParseDocument([]byte(`{"syncToken":"1","createDate":"d","prefixes":[]}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ipv6_prefixes")
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		_, err := ParseDocument([]byte(`{not json`))
		assert.ErrorIs(t, err, ErrInvalidDocument)
	})
}

func TestNew(t *testing.T) {
	doc, err := ParseDocument([]byte(validDoc))
	require.NoError(t, err)

	captured := time.Date(2023, 9, 2, 12, 0, 0, 0, time.UTC)
	snap := New(doc, captured)

	assert.Equal(t, captured, snap.CapturedAt)
	assert.Equal(t, doc.SyncToken, snap.SyncToken)
	assert.Equal(t, doc.CreateDate, snap.CreateDate)
	assert.Equal(t, doc, snap.Document)
}

func TestAge(t *testing.T) {
	captured := time.Date(2023, 9, 2, 12, 0, 0, 0, time.UTC)
	snap := Snapshot{CapturedAt: captured}
	assert.Equal(t, 2*time.Hour, snap.Age(captured.Add(2*time.Hour)))
}

func TestSameVersion(t *testing.T) {
	a := Snapshot{SyncToken: "1", CreateDate: "d1"}

	t.Run("identical metadata matches", func(t *testing.T) {
		assert.True(t, a.SameVersion(Snapshot{SyncToken: "1", CreateDate: "d1"}))
	})

	t.Run("different token differs", func(t *testing.T) {
		assert.False(t, a.SameVersion(Snapshot{SyncToken: "2", CreateDate: "d1"}))
	})

	t.Run("different createDate differs", func(t *testing.T) {
		assert.False(t, a.SameVersion(Snapshot{SyncToken: "1", CreateDate: "d2"}))
	})
}
