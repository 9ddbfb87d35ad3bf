// Package signer produces the HMAC signatures required by signed-request
// identification APIs.
package signer

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

const (
	// Method is the HTTP method covered by the signature
	Method = "POST"

	// DataType tags the uploaded payload as raw audio
	DataType = "audio"

	// SignatureVersion is the signing scheme version sent with every request
	SignatureVersion = "1"
)

// SignedRequest carries a signature and the timestamp it was computed over.
// Both must travel in the outgoing request.
type SignedRequest struct {
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
}

// now is swapped in tests
var now = time.Now

// Sign signs a request for path at the current epoch second
func Sign(path, accessKey, accessSecret string) SignedRequest {
	return SignAt(path, accessKey, accessSecret, now().Unix())
}

// SignAt signs a request for path at the given epoch second
func SignAt(path, accessKey, accessSecret string, timestamp int64) SignedRequest {
	return SignedRequest{
		Signature: signature(canonicalString(path, accessKey, timestamp), accessSecret),
		Timestamp: timestamp,
	}
}

// Verify recomputes the signature for req and compares it in constant time
func Verify(path, accessKey, accessSecret string, req SignedRequest) bool {
	expected := signature(canonicalString(path, accessKey, req.Timestamp), accessSecret)
	return hmac.Equal([]byte(expected), []byte(req.Signature))
}

func canonicalString(path, accessKey string, timestamp int64) string {
	return strings.Join([]string{
		Method,
		path,
		accessKey,
		DataType,
		SignatureVersion,
		strconv.FormatInt(timestamp, 10),
	}, "\n")
}

func signature(stringToSign, accessSecret string) string {
	mac := hmac.New(sha1.New, []byte(accessSecret))
	mac.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
