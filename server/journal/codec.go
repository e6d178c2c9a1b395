package journal

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

const kLengthSize = 4
const kTimestampSize = 8

// Codec converts values to and from the records stored in the log.
type Codec[I any, O any] interface {
	Encode(item I) ([]byte, error)
	Decode(data []byte) (O, error)
}

// TimedValue is a value along with the time (in unix millis) at which it was stored in the journal.
type TimedValue[T any] struct {
	Timestamp int64
	Value     T
}

// Time returns the timestamp of the value as a time.Time.
func (tv TimedValue[T]) Time() time.Time {
	return time.UnixMilli(tv.Timestamp)
}

// TimestampOf returns the timestamp of the given value.
func TimestampOf[T any](tv TimedValue[T]) int64 {
	return tv.Timestamp
}

// BytesEncoder stores byte slices as is.
func BytesEncoder(item []byte) ([]byte, error) {
	return item, nil
}

// BytesDecoder returns the payload as is.
func BytesDecoder(data []byte) ([]byte, error) {
	return data, nil
}

// StringEncoder stores strings as their utf-8 bytes.
func StringEncoder(item string) ([]byte, error) {
	return []byte(item), nil
}

// StringDecoder is the inverse of StringEncoder.
func StringDecoder(data []byte) (string, error) {
	return string(data), nil
}

// plainCodec lays out records as [length: 4 bytes][payload].
type plainCodec[T any] struct {
	encoder func(T) ([]byte, error)
	decoder func([]byte) (T, error)
}

// NewPlainCodec returns a codec that stores the encoded payload with a length prefix.
func NewPlainCodec[T any](encoder func(T) ([]byte, error), decoder func([]byte) (T, error)) Codec[T, T] {
	return &plainCodec[T]{encoder: encoder, decoder: decoder}
}

func (pc *plainCodec[T]) Encode(item T) ([]byte, error) {
	payload, err := encodePayload(pc.encoder, item)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, kLengthSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[kLengthSize:], payload)
	return buf, nil
}

func (pc *plainCodec[T]) Decode(data []byte) (T, error) {
	var zero T
	payload, err := unframePayload(data)
	if err != nil {
		return zero, err
	}
	return decodePayload(pc.decoder, payload)
}

// journalCodec lays out records as [timestamp: 8 bytes][length: 4 bytes][payload]. The timestamp is taken from the
// clock when the value is encoded.
type journalCodec[T any] struct {
	encoder func(T) ([]byte, error)
	decoder func([]byte) (T, error)
	clock   func() time.Time
}

// NewJournalCodec returns a codec that stamps every value with the time at which it was encoded.
func NewJournalCodec[T any](encoder func(T) ([]byte, error), decoder func([]byte) (T, error),
	clock func() time.Time) Codec[T, TimedValue[T]] {
	if clock == nil {
		clock = time.Now
	}
	return &journalCodec[T]{encoder: encoder, decoder: decoder, clock: clock}
}

func (jc *journalCodec[T]) Encode(item T) ([]byte, error) {
	payload, err := encodePayload(jc.encoder, item)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, kTimestampSize+kLengthSize+len(payload))
	binary.BigEndian.PutUint64(buf, uint64(jc.clock().UnixMilli()))
	binary.BigEndian.PutUint32(buf[kTimestampSize:], uint32(len(payload)))
	copy(buf[kTimestampSize+kLengthSize:], payload)
	return buf, nil
}

func (jc *journalCodec[T]) Decode(data []byte) (TimedValue[T], error) {
	var tv TimedValue[T]
	if len(data) < kTimestampSize {
		return tv, fmt.Errorf("%w: record of %d bytes is too short for a timestamp", ErrCodecMalformedRecord,
			len(data))
	}
	payload, err := unframePayload(data[kTimestampSize:])
	if err != nil {
		return tv, err
	}
	value, err := decodePayload(jc.decoder, payload)
	if err != nil {
		return tv, err
	}
	tv.Timestamp = int64(binary.BigEndian.Uint64(data))
	tv.Value = value
	return tv, nil
}

func encodePayload[T any](encoder func(T) ([]byte, error), item T) ([]byte, error) {
	payload, err := encoder(item)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodecEncode, err)
	}
	if len(payload) > math.MaxInt32 {
		return nil, fmt.Errorf("%w: payload of %d bytes is too large", ErrCodecEncode, len(payload))
	}
	return payload, nil
}

func decodePayload[T any](decoder func([]byte) (T, error), payload []byte) (T, error) {
	value, err := decoder(payload)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrCodecDecode, err)
	}
	return value, nil
}

// unframePayload validates the [length][payload] frame and returns the payload.
func unframePayload(data []byte) ([]byte, error) {
	if len(data) < kLengthSize {
		return nil, fmt.Errorf("%w: record of %d bytes is too short for a length", ErrCodecMalformedRecord,
			len(data))
	}
	length := int32(binary.BigEndian.Uint32(data))
	if length < 0 || int(length) != len(data)-kLengthSize {
		return nil, fmt.Errorf("%w: length %d does not match payload of %d bytes", ErrCodecMalformedRecord,
			length, len(data)-kLengthSize)
	}
	return data[kLengthSize:], nil
}
