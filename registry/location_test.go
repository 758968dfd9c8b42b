package registry

import (
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestParseRedirectLocation(t *testing.T) {
	tests := []struct {
		doc      string
		location string
		expected string
	}{
		{
			doc:      "explicit port",
			location: "https://blobstore.example.com:8443/layer/sha256:abc",
			expected: "https://blobstore.example.com:8443/layer/sha256:abc",
		},
		{
			doc:      "default port",
			location: "https://blobstore.example.com/layer/sha256:abc",
			expected: "https://blobstore.example.com:443/layer/sha256:abc",
		},
		{
			doc:      "no path",
			location: "https://blobstore.example.com",
			expected: "https://blobstore.example.com:443",
		},
		{
			doc:      "signed query survives",
			location: "https://blobstore.example.com/layer?X-Amz-Signature=abc%3D&X-Amz-Expires=300",
			expected: "https://blobstore.example.com:443/layer?X-Amz-Signature=abc%3D&X-Amz-Expires=300",
		},
	}

	for _, tc := range tests {
		t.Run(tc.doc, func(t *testing.T) {
			target, err := parseRedirectLocation(tc.location)
			assert.NilError(t, err)
			assert.Check(t, is.Equal(target, tc.expected))
		})
	}
}

func TestParseRedirectLocationErrors(t *testing.T) {
	tests := []struct {
		doc           string
		location      string
		expectedError string
	}{
		{
			doc:           "plain http",
			location:      "http://blobstore.example.com/layer",
			expectedError: "failed to find expected token 'https://'",
		},
		{
			doc:           "no scheme",
			location:      "blobstore.example.com/layer",
			expectedError: "failed to find expected token 'https://'",
		},
		{
			doc:           "port out of range",
			location:      "https://blobstore.example.com:99999/layer",
			expectedError: "failed to parse port",
		},
		{
			doc:           "port not numeric",
			location:      "https://blobstore.example.com:https/layer",
			expectedError: "failed to parse port",
		},
		{
			doc:           "empty port",
			location:      "https://blobstore.example.com:/layer",
			expectedError: "failed to parse port",
		},
	}

	for _, tc := range tests {
		t.Run(tc.doc, func(t *testing.T) {
			_, err := parseRedirectLocation(tc.location)
			assert.ErrorContains(t, err, tc.expectedError)
		})
	}
}
