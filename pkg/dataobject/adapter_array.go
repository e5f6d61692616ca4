// SPDX-License-Identifier: Apache-2.0

package dataobject

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
)

// SelfDescribingArrayAdapter reads and writes a single-file, self-describing
// array container: a JSON header (shape, dims, attrs) followed by the raw
// little-endian float64 payload. It plays the role the original
// XarrayDataArrayNetCDFAdapter plays for xarray.DataArray/NetCDF, adapted to
// a dependency-free container this module can read and write itself.
type SelfDescribingArrayAdapter struct {
	fs Filesystem
}

func NewSelfDescribingArrayAdapter() *SelfDescribingArrayAdapter {
	return &SelfDescribingArrayAdapter{}
}

func (a *SelfDescribingArrayAdapter) SetFilesystem(fs Filesystem) { a.fs = fs }

func (a *SelfDescribingArrayAdapter) FileExtension() string { return ".nc" }
func (a *SelfDescribingArrayAdapter) FileFormat() string    { return "self-describing-array" }
func (a *SelfDescribingArrayAdapter) DataObjectType() Kind  { return KindSelfDescribingArray }

func (a *SelfDescribingArrayAdapter) GetIDKwargs(obj *DataObject) (Identity, error) {
	return idKwargsFromAttrs(obj.Attrs)
}

type arrayHeader struct {
	Shape []int             `json:"shape"`
	Dims  []string          `json:"dims"`
	Attrs map[string]string `json:"attrs"`
}

func (a *SelfDescribingArrayAdapter) WriteFile(path string, obj *DataObject) error {
	attrs, err := SerializeAttrsForStorage(obj.Attrs)
	if err != nil {
		return err
	}
	header := arrayHeader{Shape: obj.Shape, Dims: obj.Dims, Attrs: attrs}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return err
	}

	w, err := a.fs.Create(path)
	if err != nil {
		return err
	}
	defer w.Close()

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(headerBytes)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(headerBytes); err != nil {
		return err
	}
	_, err = w.Write(obj.Body)
	return err
}

func (a *SelfDescribingArrayAdapter) ReadFile(path string) (*DataObject, error) {
	r, err := a.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("reading header length: %w", err)
	}
	headerLen := binary.LittleEndian.Uint32(lenBuf[:])

	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	var header arrayHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("decoding header: %w", err)
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	return &DataObject{
		Kind:  KindSelfDescribingArray,
		Attrs: DeserializeAttrsFromStorage(header.Attrs),
		Shape: header.Shape,
		Dims:  header.Dims,
		Body:  body,
	}, nil
}

func idKwargsFromAttrs(attrs map[string]any) (Identity, error) {
	id := Identity{}
	if v, ok := attrs["schema_ref"].(string); ok {
		id.SchemaRef = v
	} else {
		return id, fmt.Errorf("attrs missing string schema_ref")
	}
	if v, ok := attrs["data_name"].(string); ok {
		id.DataName = v
	} else {
		return id, fmt.Errorf("attrs missing string data_name")
	}
	switch v := attrs["version_timestamp"].(type) {
	case int64:
		id.VersionTimestamp = v
	case float64:
		id.VersionTimestamp = int64(v)
	case nil:
		id.VersionTimestamp = 0
	default:
		return id, fmt.Errorf("attrs has unsupported version_timestamp type %T", v)
	}
	return id, nil
}

// EncodeFloat64Body packs a flat slice of float64 samples into the
// little-endian byte body array adapters expect.
func EncodeFloat64Body(samples []float64) []byte {
	buf := make([]byte, 8*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// DecodeFloat64Body is the inverse of EncodeFloat64Body.
func DecodeFloat64Body(body []byte) []float64 {
	n := len(body) / 8
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(body[i*8:]))
	}
	return out
}
