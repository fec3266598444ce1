package queue

import "encoding/json"

// JSONCodec frames any JSON-marshalable item as its plain JSON encoding;
// the queue engine adds the length prefix. Used for events and raw rows
// (spec §4.7: "events/rows are length-prefixed JSON").
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Encode(item T) ([]byte, error) {
	return json.Marshal(item)
}

func (JSONCodec[T]) Decode(frame []byte) (T, error) {
	var item T
	err := json.Unmarshal(frame, &item)
	return item, err
}
