package signal

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/dkeye/VideoChat/internal/app"
)

var validate = validator.New()

var errEmptyType = errors.New("missing event type")

type joinPayload struct {
	Room     string `json:"room" validate:"required,max=64"`
	Username string `json:"username" validate:"required,max=36"`
}

type leavePayload struct {
	Room string `json:"room" validate:"required,max=64"`
}

type framePayload struct {
	Frame string `json:"frame" validate:"required"`
}

type togglePayload struct {
	Feature string `json:"feature" validate:"required"`
	Enabled *bool  `json:"enabled" validate:"required"`
}

type chatPayload struct {
	Message string `json:"message" validate:"required"`
}

func decodeEnvelope(data []byte) (app.Envelope, error) {
	var env app.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return app.Envelope{}, err
	}
	if env.Type == "" {
		return app.Envelope{}, errEmptyType
	}
	return env, nil
}

// decodePayload unmarshals raw into v and runs struct validation.
func decodePayload[T any](raw json.RawMessage, v *T) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("bad payload: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}
