package capture

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Arrays are stored as a flat little-endian float64 sequence.

func encodeArray(values []float64) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, values); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeArray(data []byte) ([]float64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("array payload of %d bytes is not a float64 sequence", len(data))
	}
	values := make([]float64, len(data)/8)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &values); err != nil {
		return nil, err
	}
	return values, nil
}
