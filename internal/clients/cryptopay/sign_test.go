package cryptopay

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testKey = "payment-key"

// signedBody builds a webhook body the way the provider does: sign over the
// canonical JSON without the sign field, then embed it.
func signedBody(t *testing.T, fields map[string]interface{}) []byte {
	t.Helper()
	canonical, err := json.Marshal(fields)
	assert.NoError(t, err)

	fields["sign"] = signRaw(canonical, testKey)
	body, err := json.Marshal(fields)
	assert.NoError(t, err)
	return body
}

func TestVerifyWebhook(t *testing.T) {
	t.Run("Valid signature accepted", func(t *testing.T) {
		body := signedBody(t, map[string]interface{}{
			"order_id": "order-1",
			"status":   "paid",
		})

		data, ok := VerifyWebhook(body, testKey)

		assert.True(t, ok)
		assert.Equal(t, "order-1", data["order_id"])
		assert.Equal(t, "paid", data["status"])
	})

	t.Run("Wire key order and ampersands preserved", func(t *testing.T) {
		// The provider hashes the JSON exactly as it sends it: keys in
		// insertion order, no escaping. Re-serializing on our side would
		// sort keys and escape the ampersands, breaking the digest.
		canonical := `{"type":"payment","uuid":"u-1","order_id":"order-1","status":"paid","url":"https://pay.example/cb?a=1&b=2"}`
		sign := signRaw([]byte(canonical), testKey)
		body := canonical[:len(canonical)-1] + `,"sign":"` + sign + `"}`

		data, ok := VerifyWebhook([]byte(body), testKey)

		assert.True(t, ok)
		assert.Equal(t, "order-1", data["order_id"])
		assert.Equal(t, "https://pay.example/cb?a=1&b=2", data["url"])
	})

	t.Run("Sign as first member", func(t *testing.T) {
		canonical := `{"status":"paid","order_id":"order-1"}`
		sign := signRaw([]byte(canonical), testKey)
		body := `{"sign":"` + sign + `",` + canonical[1:]

		data, ok := VerifyWebhook([]byte(body), testKey)

		assert.True(t, ok)
		assert.Equal(t, "paid", data["status"])
	})

	t.Run("Nested values skipped intact", func(t *testing.T) {
		canonical := `{"order_id":"order-1","convert":{"to_currency":"USDT","rate":"6.1"},"txid":["a","b"]}`
		sign := signRaw([]byte(canonical), testKey)
		body := canonical[:len(canonical)-1] + `,"sign":"` + sign + `"}`

		_, ok := VerifyWebhook([]byte(body), testKey)

		assert.True(t, ok)
	})

	t.Run("Tampered payload rejected", func(t *testing.T) {
		body := signedBody(t, map[string]interface{}{
			"order_id": "order-1",
			"status":   "cancel",
		})
		// Flip the status after signing.
		var fields map[string]interface{}
		assert.NoError(t, json.Unmarshal(body, &fields))
		fields["status"] = "paid"
		forged, err := json.Marshal(fields)
		assert.NoError(t, err)

		_, ok := VerifyWebhook(forged, testKey)

		assert.False(t, ok)
	})

	t.Run("Missing signature rejected", func(t *testing.T) {
		body, _ := json.Marshal(map[string]interface{}{"order_id": "order-1"})

		_, ok := VerifyWebhook(body, testKey)

		assert.False(t, ok)
	})

	t.Run("Wrong key rejected", func(t *testing.T) {
		body := signedBody(t, map[string]interface{}{"order_id": "order-1"})

		_, ok := VerifyWebhook(body, "other-key")

		assert.False(t, ok)
	})

	t.Run("Malformed body rejected", func(t *testing.T) {
		_, ok := VerifyWebhook([]byte("not json"), testKey)

		assert.False(t, ok)
	})
}

func TestStatusClassification(t *testing.T) {
	assert.True(t, IsPaidStatus("paid"))
	assert.True(t, IsPaidStatus("paid_over"))
	assert.True(t, IsPaidStatus("PAID"))
	assert.False(t, IsPaidStatus("cancel"))

	assert.True(t, IsTerminalFailure("cancel"))
	assert.True(t, IsTerminalFailure("fail"))
	assert.True(t, IsTerminalFailure("system_fail"))
	assert.False(t, IsTerminalFailure("paid"))
}
