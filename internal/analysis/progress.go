package analysis

import (
	"encoding/json"
	"errors"
	"fmt"

	"codescape/internal/codec"
	"codescape/internal/domain"
)

// Command discriminates progress messages
type Command string

const (
	CommandLoading  Command = "loading"
	CommandAnalyze  Command = "analyze"
	CommandAnalysis Command = "analysis"
	CommandASTData  Command = "astData"
	CommandError    Command = "error"
)

// ErrMissingCommand is returned for messages without a command
var ErrMissingCommand = errors.New("progress message has no command")

// Message is one progress message relayed from the host shell
type Message struct {
	Command Command         `json:"command"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// DecodeMessage parses a progress message
func DecodeMessage(raw []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("failed to parse progress message: %w", err)
	}
	if m.Command == "" {
		return Message{}, ErrMissingCommand
	}
	return m, nil
}

// CarriesPayload reports whether the message delivers an analysis result
func (m Message) CarriesPayload() bool {
	return m.Command == CommandAnalysis || m.Command == CommandASTData
}

// IsError reports whether the message reports a failure
func (m Message) IsError() bool {
	return m.Command == CommandError
}

// Payload decodes the message data. Missing data is an empty payload.
func (m Message) Payload() (*domain.Payload, error) {
	if !m.CarriesPayload() {
		return nil, fmt.Errorf("%s message carries no payload", m.Command)
	}
	if len(m.Data) == 0 || string(m.Data) == "null" {
		return codec.DecodePayload([]byte("{}"))
	}
	return codec.DecodePayload(m.Data)
}
