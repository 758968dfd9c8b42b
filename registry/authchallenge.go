package registry

import (
	"strings"

	"github.com/pkg/errors"
)

// parseAuthChallenge parses a WWW-Authenticate bearer challenge of the
// form
//
//	Bearer realm="...",service="...",scope="..."
//
// into its attribute map. The grammar is deliberately narrow: exactly
// one scheme token, comma-separated attributes, each splitting into a
// key and a quoted value.
func parseAuthChallenge(header string) (map[string]string, error) {
	fields := strings.Fields(header)
	if len(fields) != 2 {
		return nil, errors.Errorf("unexpected number of tokens in authentication header: %s", header)
	}
	if fields[0] != "Bearer" {
		return nil, errors.Errorf("unsupported authorization scheme: %s", fields[0])
	}

	attributes := make(map[string]string)
	for _, param := range strings.Split(fields[1], ",") {
		if param == "" {
			continue
		}
		kv := strings.FieldsFunc(param, func(r rune) bool {
			return r == '=' || r == '"'
		})
		if len(kv) != 2 {
			return nil, errors.Errorf("malformed authentication attribute: %s", param)
		}
		attributes[kv[0]] = kv[1]
	}
	return attributes, nil
}
