package signer

import (
	"strings"
	"testing"
	"time"
)

const (
	testPath   = "/v1/identify"
	testKey    = "test_key"
	testSecret = "test_secret"
	testTime   = int64(1700000000)
)

func TestSignAt_KnownVector(t *testing.T) {
	got := SignAt(testPath, testKey, testSecret, testTime)

	if got.Signature != "J+NymOC5ws+MG/Y3eey+bTchzOo=" {
		t.Errorf("Signature = %q, expected %q", got.Signature, "J+NymOC5ws+MG/Y3eey+bTchzOo=")
	}
	if got.Timestamp != testTime {
		t.Errorf("Timestamp = %d, expected %d", got.Timestamp, testTime)
	}
}

func TestCanonicalString(t *testing.T) {
	got := canonicalString(testPath, testKey, testTime)
	want := "POST\n/v1/identify\ntest_key\naudio\n1\n1700000000"
	if got != want {
		t.Errorf("canonicalString() = %q, expected %q", got, want)
	}
}

func TestSign_SameSecondIsDeterministic(t *testing.T) {
	fixed := time.Unix(testTime, 250*int64(time.Millisecond))
	now = func() time.Time { return fixed }
	defer func() { now = time.Now }()

	first := Sign(testPath, testKey, testSecret)
	second := Sign(testPath, testKey, testSecret)

	if first != second {
		t.Errorf("Expected identical signatures within one second, got %+v and %+v", first, second)
	}
	if first.Timestamp != testTime {
		t.Errorf("Expected whole-second timestamp %d, got %d", testTime, first.Timestamp)
	}
}

func TestSignAt_EachInputChangesSignature(t *testing.T) {
	base := SignAt(testPath, testKey, testSecret, testTime)

	tests := []struct {
		name   string
		signed SignedRequest
	}{
		{"Different path", SignAt("/v1/other", testKey, testSecret, testTime)},
		{"Different access key", SignAt(testPath, "other_key", testSecret, testTime)},
		{"Different secret", SignAt(testPath, testKey, "other_secret", testTime)},
		{"Different timestamp", SignAt(testPath, testKey, testSecret, testTime+1)},
	}

	seen := map[string]string{base.Signature: "base"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if prev, ok := seen[tt.signed.Signature]; ok {
				t.Errorf("Signature collides with %s: %q", prev, tt.signed.Signature)
			}
			seen[tt.signed.Signature] = tt.name
		})
	}
}

func TestVerify(t *testing.T) {
	signed := SignAt(testPath, testKey, testSecret, testTime)

	if !Verify(testPath, testKey, testSecret, signed) {
		t.Error("Expected signature to verify")
	}

	replayed := SignedRequest{Signature: signed.Signature, Timestamp: testTime - 60}
	if Verify(testPath, testKey, testSecret, replayed) {
		t.Error("Expected signature with a different timestamp to be rejected")
	}

	if Verify(testPath, testKey, "wrong", signed) {
		t.Error("Expected signature with the wrong secret to be rejected")
	}
}

func TestSignature_IsBase64SHA1(t *testing.T) {
	got := SignAt(testPath, testKey, testSecret, testTime).Signature
	// 20 byte digest -> 28 base64 chars with one pad
	if len(got) != 28 || !strings.HasSuffix(got, "=") {
		t.Errorf("Unexpected signature shape: %q", got)
	}
}
