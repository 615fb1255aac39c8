package protocol

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func withNoise(noise []byte, frame []byte) []byte {
	return append(append([]byte{}, noise...), frame...)
}

func flipBit(b []byte, index int, bit uint) []byte {
	out := append([]byte{}, b...)
	out[index] ^= 1 << bit
	return out
}

func TestParseLengthBounds(t *testing.T) {
	for _, d := range []Dialect{HostDialect, SensorDialect} {
		for n := 0; n < d.MinLen(); n++ {
			_, err := Parse(d, make([]byte, n), nil)
			require.Equalf(t, ErrFrame, err, "%s len %d", d, n)
		}
		_, err := Parse(d, make([]byte, d.MaxLen()+1), nil)
		require.Equalf(t, ErrFrame, err, "%s len %d", d, d.MaxLen()+1)
	}
}

func TestParseHostRequests(t *testing.T) {
	testCases := []struct {
		name   string
		in     []byte
		err    error
		expect *Frame
	}{
		{
			"read",
			ReadRequest(0x0007, FuncAppointData, 2),
			nil,
			&Frame{Address: 7, Op: OpRead, Func: FuncAppointData, Len: 2},
		},
		{
			"read with noise",
			withNoise([]byte{0xff, 0xff}, ReadRequest(0x0001, FuncAppointData, 2)),
			nil,
			&Frame{Offset: 2, Address: 1, Op: OpRead, Func: FuncAppointData, Len: 2},
		},
		{
			"read bad length",
			ReadRequest(0x0001, FuncIDSet, 3),
			ErrFrame,
			nil,
		},
		{
			"write reversed payload",
			WriteRequest(0x0001, FuncAppointData, 0x02, 0x5a, 0x03, 0x10),
			nil,
			&Frame{Address: 1, Op: OpWrite, Func: FuncAppointData, Len: 4, Data: []byte{0x10, 0x03, 0x5a, 0x02}},
		},
		{
			"write empty payload",
			WriteRequest(0x0001, FuncSys),
			nil,
			&Frame{Address: 1, Op: OpWrite, Func: FuncSys},
		},
		{
			"write length beyond frame",
			[]byte{0x51, 0x0b, 0x00, 0x01, 0x01, 0x00, 0x05, 0x00, 0x00},
			ErrFrame,
			nil,
		},
		{
			"no header",
			[]byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x51},
			ErrFrame,
			nil,
		},
		{
			"too short after header",
			withNoise([]byte{0x00, 0x00}, ReadRequest(0x0001, FuncIDSet, 2)[:8]),
			ErrFrame,
			nil,
		},
		{
			"slave header rejected",
			WriteResponse(0x0001, FuncSys)[:8],
			ErrFrame,
			nil,
		},
		{
			"error opcode rejected",
			withNoise([]byte{0x00}, []byte{0x51, 0x0b, 0xff, 0xff, 0xff, 0x07, 0x00, 0x00}),
			ErrFrame,
			nil,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := Parse(HostDialect, tc.in, nil)
			if tc.err != nil {
				require.Equal(t, tc.err, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expect, f)
		})
	}
}

func TestParseChecksumScenario(t *testing.T) {
	in := []byte{0x51, 0x0b, 0x00, 0x01, 0x00, 0x03, 0x02, 0x00, 0x0c}
	require.Equal(t, uint16(0x0062), Checksum(in[:7]))
	f, err := Parse(HostDialect, in, nil)
	require.Equal(t, ErrChecksum, err)
	require.Equal(t, 0, f.Offset)

	in[8] = 0x62
	f, err = Parse(HostDialect, in, nil)
	require.NoError(t, err)
	require.Equal(t, &Frame{Address: 1, Op: OpRead, Func: FuncIDSet, Len: 2}, f)
}

func TestParseSingleBitFlip(t *testing.T) {
	frames := []struct {
		dialect Dialect
		in      []byte
		first   int
		last    int
	}{
		{HostDialect, WriteRequest(0x0001, FuncAppointData, 0x00, 0x5a, 0x02, 0xb4), 7, 10},
		{SensorDialect, ReadResponse(0x0001, StatusNormal, 0x05, 2, 0x04d2), 8, 9},
		{SensorDialect, ReadResponse(0x0001, StatusNormal, 0x03, 1, 0x07), 8, 8},
	}
	for _, fr := range frames {
		for i := fr.first; i <= fr.last; i++ {
			for bit := uint(0); bit < 8; bit++ {
				_, err := Parse(fr.dialect, flipBit(fr.in, i, bit), nil)
				require.Equal(t, ErrChecksum, err, fmt.Sprintf("%s byte %d bit %d", fr.dialect, i, bit))
			}
		}
	}
}

func TestParseSensorResponses(t *testing.T) {
	testCases := []struct {
		name   string
		in     []byte
		err    error
		expect *Frame
	}{
		{
			"read two bytes",
			ReadResponse(0x0002, StatusNormal, 0x05, 2, 0x04d2),
			nil,
			&Frame{Address: 2, Op: OpRead, Func: 0x05, Len: 2, Value: 0x04d2},
		},
		{
			"read one byte",
			ReadResponse(0x0002, StatusNormal, 0x0a, 1, 0x01),
			nil,
			&Frame{Address: 2, Op: OpRead, Func: 0x0a, Len: 1, Value: 1},
		},
		{
			"read with noise",
			withNoise([]byte{0x55, 0x00, 0x13}, ReadResponse(0x0002, StatusNormal, 0x05, 2, 0x0102)),
			nil,
			&Frame{Offset: 3, Address: 2, Op: OpRead, Func: 0x05, Len: 2, Value: 0x0102},
		},
		{
			"read invalid length",
			putChecksum([]byte{0x55, 0x0b, 0x00, 0x01, 0x00, 0x00, 0x05, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00}),
			ErrFrame,
			nil,
		},
		{
			"write ack",
			WriteResponse(0x0002, 0x0a),
			nil,
			&Frame{Address: 2, Op: OpWrite, Func: 0x0a},
		},
		{
			"unknown opcode",
			putChecksum([]byte{0x55, 0x0b, 0x00, 0x01, 0x02, 0x00, 0x00, 0x00}),
			ErrFrame,
			nil,
		},
		{
			"error without marker",
			putChecksum([]byte{0x55, 0x0b, 0x00, 0x01, 0xff, 0x09, 0x00, 0x00}),
			ErrFrame,
			nil,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := Parse(SensorDialect, tc.in, nil)
			if tc.err != nil {
				require.Equal(t, tc.err, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expect, f)
		})
	}
}

func TestParseErrorFrame(t *testing.T) {
	_, err := Parse(SensorDialect, ErrorResponse(StatusErrBusy), nil)
	require.Equal(t, &OperationError{Code: byte(StatusErrBusy)}, err)
	require.Equal(t, StatusErrBusy, StatusOf(err))
}

func TestParseReusesPayload(t *testing.T) {
	payload := make([]byte, 16)
	f, err := Parse(HostDialect, WriteRequest(0x0001, FuncSys, 0x02), payload)
	require.NoError(t, err)
	require.Equal(t, []byte{0x02}, f.Data)
	require.Equal(t, byte(0x02), payload[0])
}
