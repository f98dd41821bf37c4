package provisioning

import (
	"encoding/json"
	"fmt"
)

// DecodeAsset turns a request body into the asset payload. An empty body yields {}.
func DecodeAsset(body []byte) (any, error) {
	if len(body) == 0 {
		return map[string]any{}, nil
	}
	var asset any
	if err := json.Unmarshal(body, &asset); err != nil {
		return nil, fmt.Errorf("invalid asset: %w", err)
	}
	return asset, nil
}
