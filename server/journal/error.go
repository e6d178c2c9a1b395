package journal

import "errors"

var (
	// ErrCodecMalformedRecord is returned when a record read from the log does not have the expected layout.
	ErrCodecMalformedRecord = errors.New("ErrCodecMalformedRecord: malformed record")

	// ErrCodecEncode is returned when the encoder fails to convert a value to bytes.
	ErrCodecEncode = errors.New("ErrCodecEncode: unable to encode value")

	// ErrCodecDecode is returned when the decoder fails to convert bytes to a value.
	ErrCodecDecode = errors.New("ErrCodecDecode: unable to decode value")

	// ErrStoreClosed is returned when the store is used after it has been closed.
	ErrStoreClosed = errors.New("ErrStoreClosed: store is closed")

	// ErrStoreIO is returned when a tailer fails to read from the log.
	ErrStoreIO = errors.New("ErrStoreIO: unable to read from log")

	ErrConfigMissingPath     = errors.New("ErrConfigMissingPath: a storage path is required")
	ErrConfigMissingEncoder  = errors.New("ErrConfigMissingEncoder: an encoder is required")
	ErrConfigMissingDecoder  = errors.New("ErrConfigMissingDecoder: a decoder is required")
	ErrConfigInvalidInterval = errors.New("ErrConfigInvalidInterval: poll intervals must be > 0")
)
