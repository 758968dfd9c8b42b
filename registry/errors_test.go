package registry

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestBadRequestError(t *testing.T) {
	tests := []struct {
		doc           string
		body          string
		expectedError string
	}{
		{
			doc:           "single message",
			body:          `{"errors": [{"code": "DIGEST_INVALID", "message": "provided digest did not match"}]}`,
			expectedError: "received bad request, errors: [provided digest did not match]",
		},
		{
			doc: "messages aggregate in order",
			body: `{"errors": [
				{"message": "digest invalid"},
				{"message": "name unknown"}
			]}`,
			expectedError: "received bad request, errors: [digest invalid, name unknown]",
		},
		{
			doc: "elements without message are skipped",
			body: `{"errors": [
				{"message": "digest invalid"},
				{"code": "UNKNOWN"},
				{"message": "name unknown"}
			]}`,
			expectedError: "received bad request, errors: [digest invalid, name unknown]",
		},
		{
			doc:           "empty errors array",
			body:          `{"errors": []}`,
			expectedError: "received bad request, errors: []",
		},
		{
			doc:           "not json",
			body:          "<html>bad request</html>",
			expectedError: "failed to parse bad request response",
		},
		{
			doc:           "errors missing",
			body:          `{"detail": "nope"}`,
			expectedError: `failed to find "errors" in bad request response`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.doc, func(t *testing.T) {
			err := badRequestError([]byte(tc.body))
			assert.ErrorContains(t, err, tc.expectedError)
		})
	}
}
