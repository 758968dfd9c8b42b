package registry

import (
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

const busyboxManifest = `{
	"name": "library/busybox",
	"tag": "latest",
	"fsLayers": [
		{"blobSum": "sha256:1db09adb5ddd7f1a07b6d585a7db747a51c7bd17418d47e91f901bdf420abd66"},
		{"blobSum": "sha256:a3ed95caeb02ffe68cdd9fd84406680ae93d633cb16422d00e8a7c22955b46d4"}
	],
	"history": [
		{"v1Compatibility": "{\"id\":\"e9aa60c60128cad1\",\"parent\":\"9a2d5d4f8b38\"}"},
		{"v1Compatibility": "{\"id\":\"9a2d5d4f8b38f40a\"}"}
	],
	"schemaVersion": 1
}`

func TestDecodeManifest(t *testing.T) {
	manifest, err := decodeManifest([]byte(busyboxManifest))
	assert.NilError(t, err)

	assert.Check(t, is.Equal(manifest.Name, "library/busybox"))
	expected := []FSLayer{
		{
			BlobSum: "sha256:1db09adb5ddd7f1a07b6d585a7db747a51c7bd17418d47e91f901bdf420abd66",
			LayerID: "e9aa60c60128cad1",
		},
		{
			BlobSum: "sha256:a3ed95caeb02ffe68cdd9fd84406680ae93d633cb16422d00e8a7c22955b46d4",
			LayerID: "9a2d5d4f8b38f40a",
		},
	}
	assert.DeepEqual(t, manifest.Layers, expected)
}

func TestDecodeManifestErrors(t *testing.T) {
	tests := []struct {
		doc           string
		body          string
		expectedError string
	}{
		{
			doc:           "not json",
			body:          "<html>registry</html>",
			expectedError: "invalid character",
		},
		{
			doc:           "missing name",
			body:          `{"fsLayers": [], "history": []}`,
			expectedError: `failed to find "name"`,
		},
		{
			doc:           "missing fsLayers",
			body:          `{"name": "library/busybox", "history": []}`,
			expectedError: `failed to find "fsLayers"`,
		},
		{
			doc:           "missing history",
			body:          `{"name": "library/busybox", "fsLayers": []}`,
			expectedError: `failed to find "history"`,
		},
		{
			doc: "count mismatch",
			body: `{
				"name": "library/busybox",
				"fsLayers": [{"blobSum": "sha256:aaa"}, {"blobSum": "sha256:bbb"}],
				"history": [{"v1Compatibility": "{\"id\":\"x\"}"}]
			}`,
			expectedError: `"history" and "fsLayers" array count mismatch`,
		},
		{
			doc: "missing blobSum",
			body: `{
				"name": "library/busybox",
				"fsLayers": [{"blobSum": "sha256:aaa"}, {}],
				"history": [{"v1Compatibility": "{\"id\":\"x\"}"}, {"v1Compatibility": "{\"id\":\"y\"}"}]
			}`,
			expectedError: `failed to find "blobSum" for layer 1`,
		},
		{
			doc: "missing v1Compatibility",
			body: `{
				"name": "library/busybox",
				"fsLayers": [{"blobSum": "sha256:aaa"}],
				"history": [{}]
			}`,
			expectedError: `failed to find "v1Compatibility" for layer 0`,
		},
		{
			doc: "v1Compatibility not json",
			body: `{
				"name": "library/busybox",
				"fsLayers": [{"blobSum": "sha256:aaa"}],
				"history": [{"v1Compatibility": "not-json"}]
			}`,
			expectedError: "failed to parse v1Compatibility for layer 0",
		},
		{
			doc: "missing id",
			body: `{
				"name": "library/busybox",
				"fsLayers": [{"blobSum": "sha256:aaa"}],
				"history": [{"v1Compatibility": "{\"parent\":\"y\"}"}]
			}`,
			expectedError: `failed to find "id" in v1Compatibility for layer 0`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.doc, func(t *testing.T) {
			_, err := decodeManifest([]byte(tc.body))
			assert.ErrorContains(t, err, tc.expectedError)
		})
	}
}
