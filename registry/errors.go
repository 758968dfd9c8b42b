package registry

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// registryError is one element of the error document a registry sends
// with a 400 response.
type registryError struct {
	Message *string `json:"message"`
}

// badRequestError aggregates the error messages of a 400 response body.
// Elements without a message are skipped.
func badRequestError(body []byte) error {
	var doc struct {
		Errors *[]registryError `json:"errors"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return errors.Wrap(err, "failed to parse bad request response")
	}
	if doc.Errors == nil {
		return errors.New(`failed to find "errors" in bad request response`)
	}

	messages := make([]string, 0, len(*doc.Errors))
	for _, e := range *doc.Errors {
		if e.Message == nil {
			continue
		}
		messages = append(messages, *e.Message)
	}
	return errors.Errorf("received bad request, errors: [%s]", strings.Join(messages, ", "))
}
