package cryptopay

import (
	"bytes"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
)

// Sign computes the provider's request signature: md5 over the base64 of the
// JSON body concatenated with the API key. The same digest protects inbound
// webhooks.
func Sign(payload interface{}, apiKey string) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return signRaw(raw, apiKey), nil
}

func signRaw(canonicalJSON []byte, apiKey string) string {
	b64 := base64.StdEncoding.EncodeToString(canonicalJSON)
	sum := md5.Sum([]byte(b64 + apiKey))
	return hex.EncodeToString(sum[:])
}

// VerifyWebhook checks the signature embedded in a webhook body and returns
// the decoded payload. The digest covers the exact bytes the provider sent
// with the sign member removed; re-serializing here would reorder keys and
// escape characters, so the sign member is excised textually instead.
// Verification happens before any order lookup.
func VerifyWebhook(rawBody []byte, apiKey string) (map[string]interface{}, bool) {
	stripped, sign, ok := splitSign(rawBody)
	if !ok {
		return nil, false
	}
	if signRaw(stripped, apiKey) != sign {
		return nil, false
	}

	var data map[string]interface{}
	if err := json.Unmarshal(rawBody, &data); err != nil {
		return nil, false
	}
	delete(data, "sign")
	return data, true
}

// splitSign extracts the top-level sign member and returns the remaining
// body bytes untouched, exactly as the provider hashed them.
func splitSign(raw []byte) ([]byte, string, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, "", false
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, "", false
	}

	open := dec.InputOffset()
	prev := open
	var sign string
	var start, end int64 = -1, -1

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, "", false
		}
		key, _ := keyTok.(string)
		if key == "sign" {
			valTok, err := dec.Token()
			if err != nil {
				return nil, "", false
			}
			s, ok := valTok.(string)
			if !ok {
				return nil, "", false
			}
			sign = s
			start = prev
			end = dec.InputOffset()
		} else if err := skipValue(dec); err != nil {
			return nil, "", false
		}
		prev = dec.InputOffset()
	}
	if start < 0 || sign == "" {
		return nil, "", false
	}

	stripped := make([]byte, 0, len(raw))
	stripped = append(stripped, raw[:start]...)
	tail := raw[end:]
	if start == open {
		// sign was the first member; drop the comma it leaves behind.
		tail = bytes.TrimLeft(tail, " \t\r\n")
		if len(tail) > 0 && tail[0] == ',' {
			tail = tail[1:]
		}
	}
	stripped = append(stripped, tail...)
	return stripped, sign, true
}

func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); ok && (d == '{' || d == '[') {
		depth := 1
		for depth > 0 {
			tok, err = dec.Token()
			if err != nil {
				return err
			}
			if d, ok := tok.(json.Delim); ok {
				switch d {
				case '{', '[':
					depth++
				case '}', ']':
					depth--
				}
			}
		}
	}
	return nil
}
