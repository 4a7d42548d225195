package otakulist

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Envelope is the wrapper every API response uses
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
}

// ErrNoData is returned when a successful envelope carries no data
var ErrNoData = errors.New("response has no data")

// DecodeData unwraps an envelope and decodes its data into T. Payloads
// without a "success" field are decoded as-is.
func DecodeData[T any](raw json.RawMessage) (T, error) {
	var out T
	if !gjson.GetBytes(raw, "success").Exists() {
		err := json.Unmarshal(raw, &out)
		return out, err
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return out, fmt.Errorf("decode envelope: %w", err)
	}
	if !env.Success {
		if env.Message == "" {
			return out, errors.New("request was not successful")
		}
		return out, errors.New(env.Message)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return out, ErrNoData
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, fmt.Errorf("decode data: %w", err)
	}
	return out, nil
}
