package network

import (
	"fmt"
	"strconv"
)

// Message is a packet payload exchanged with clients. Every message has a "type" field.
type Message map[string]interface{}

// NewMessage creates a message of the given type
func NewMessage(typ string) Message {
	return Message{"type": typ}
}

// Type returns the message type
func (m Message) Type() string {
	return m.String("type")
}

// String returns the field as a string, or "" if it is missing
func (m Message) String(key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// Float returns a numeric field, or 0 if it is missing or not a number
func (m Message) Float(key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int8:
		return float64(v)
	case int16:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint8:
		return float64(v)
	case uint16:
		return float64(v)
	case uint32:
		return float64(v)
	case uint64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

// Map returns a nested message, or an empty one if the field is missing
func (m Message) Map(key string) Message {
	switch v := m[key].(type) {
	case map[string]interface{}:
		return Message(v)
	case Message:
		return v
	case map[interface{}]interface{}:
		nested := make(Message, len(v))
		for k, val := range v {
			nested[fmt.Sprint(k)] = val
		}
		return nested
	}
	return Message{}
}
