package auth

import (
	"bytes"
	"crypto/hmac"
	"io"
	"net/http"
	"strings"
)

const SignatureHeader = "X-Webhook-Signature"

// SignPayload returns the base64url HMAC-SHA256 of body.
func SignPayload(body []byte, secret string) string {
	return hmacSHA256(body, secret)
}

func VerifyPayload(body []byte, signature, secret string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}
	return hmac.Equal([]byte(signature), []byte(hmacSHA256(body, secret)))
}

// RequireSignature rejects requests whose body does not match the signature
// header. An empty secret disables the check. The body is restored for next.
func RequireSignature(secret string, maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var reader io.Reader = r.Body
			if maxBytes > 0 {
				reader = io.LimitReader(r.Body, maxBytes)
			}
			body, err := io.ReadAll(reader)
			_ = r.Body.Close()
			if err != nil {
				http.Error(w, "invalid body", http.StatusBadRequest)
				return
			}
			if !VerifyPayload(body, r.Header.Get(SignatureHeader), secret) {
				http.Error(w, "invalid signature", http.StatusUnauthorized)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))
			next.ServeHTTP(w, r)
		})
	}
}
