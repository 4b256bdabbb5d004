package userdata

import (
	"bytes"
	"encoding/json"

	"nnoitra-backend/internal/models"
)

// Entry is one key of a category
type Entry struct {
	Key   string
	Value *string
}

// Values holds a category's entries in the order they were read.
// It encodes as a JSON object that keeps that order.
type Values []Entry

func valuesFrom(items []models.UserDataItem) Values {
	v := make(Values, 0, len(items))
	for _, it := range items {
		v = append(v, Entry{Key: it.Key, Value: it.Value})
	}
	return v
}

func (v Values) reversed() Values {
	out := make(Values, len(v))
	for i, e := range v {
		out[len(v)-1-i] = e
	}
	return out
}

// MarshalJSON implements json.Marshaler
func (v Values) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range v {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Env is the read-only view returned for the ENV category
type Env struct {
	Remote    Values `json:"REMOTE"`
	Userspace Values `json:"USERSPACE"`
}
