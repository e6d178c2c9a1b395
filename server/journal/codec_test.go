package journal

import (
	"chronolog/util/testutil"
	"encoding/binary"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func intEncoder(v int) ([]byte, error) {
	if v < 0 {
		return nil, errors.New("negative values are not supported")
	}
	return []byte(strconv.Itoa(v)), nil
}

func intDecoder(data []byte) (int, error) {
	return strconv.Atoi(string(data))
}

func TestPlainCodecRoundTrip(t *testing.T) {
	testutil.LogTestMarker("TestPlainCodecRoundTrip")
	codec := NewPlainCodec(intEncoder, intDecoder)
	for _, v := range []int{0, 1, 42, 1 << 40} {
		data, err := codec.Encode(v)
		require.NoError(t, err)
		require.Equal(t, uint32(len(data)-4), binary.BigEndian.Uint32(data))
		got, err := codec.Decode(data)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
	data, err := NewPlainCodec(StringEncoder, StringDecoder).Encode("")
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0, 0}, data)
}

func TestJournalCodecRoundTrip(t *testing.T) {
	testutil.LogTestMarker("TestJournalCodecRoundTrip")
	now := time.UnixMilli(1700000000123)
	codec := NewJournalCodec(StringEncoder, StringDecoder, func() time.Time { return now })
	data, err := codec.Encode("hello")
	require.NoError(t, err)
	require.Len(t, data, 8+4+5)
	require.Equal(t, uint64(now.UnixMilli()), binary.BigEndian.Uint64(data))
	require.Equal(t, uint32(5), binary.BigEndian.Uint32(data[8:]))
	tv, err := codec.Decode(data)
	require.NoError(t, err)
	require.Equal(t, TimedValue[string]{Timestamp: now.UnixMilli(), Value: "hello"}, tv)
	require.True(t, tv.Time().Equal(now))
	require.Equal(t, now.UnixMilli(), TimestampOf(tv))
}

func TestCodecMalformedRecords(t *testing.T) {
	testutil.LogTestMarker("TestCodecMalformedRecords")
	plain := NewPlainCodec(StringEncoder, StringDecoder)
	journal := NewJournalCodec(StringEncoder, StringDecoder, nil)
	negative := make([]byte, 4)
	binary.BigEndian.PutUint32(negative, uint32(0xFFFFFFFF))
	mismatch := []byte{0, 0, 0, 9, 'a', 'b'}
	for _, data := range [][]byte{nil, {0, 0}, negative, mismatch} {
		_, err := plain.Decode(data)
		require.True(t, errors.Is(err, ErrCodecMalformedRecord), "data: %v", data)
	}
	for _, data := range [][]byte{nil, make([]byte, 7), make([]byte, 10), append(make([]byte, 8), mismatch...)} {
		_, err := journal.Decode(data)
		require.True(t, errors.Is(err, ErrCodecMalformedRecord), "data: %v", data)
	}
}

func TestCodecErrors(t *testing.T) {
	testutil.LogTestMarker("TestCodecErrors")
	codec := NewPlainCodec(intEncoder, intDecoder)
	_, err := codec.Encode(-1)
	require.True(t, errors.Is(err, ErrCodecEncode))
	data, err := NewPlainCodec(StringEncoder, StringDecoder).Encode("not-a-number")
	require.NoError(t, err)
	_, err = codec.Decode(data)
	require.True(t, errors.Is(err, ErrCodecDecode))
}
