// SPDX-License-Identifier: Apache-2.0

package dataobject

import (
	"encoding/json"
	"fmt"
	"io"
)

// ChunkedArrayDirAdapter reads and writes a chunked, directory-laid-out
// array container: one metadata file (".zarray"-style shape/dims/attrs
// JSON) plus one data chunk file per array, under a directory named after
// the object's identity. It plays the role the original
// XarrayDataArrayZarrAdapter plays for xarray.DataArray/Zarr. Unlike the
// self-describing-array adapter its "file" is a directory, so
// FileExtension is empty.
type ChunkedArrayDirAdapter struct {
	fs Filesystem
}

func NewChunkedArrayDirAdapter() *ChunkedArrayDirAdapter {
	return &ChunkedArrayDirAdapter{}
}

func (a *ChunkedArrayDirAdapter) SetFilesystem(fs Filesystem) { a.fs = fs }

func (a *ChunkedArrayDirAdapter) FileExtension() string { return "" }
func (a *ChunkedArrayDirAdapter) FileFormat() string    { return "chunked-array-directory" }
func (a *ChunkedArrayDirAdapter) DataObjectType() Kind  { return KindChunkedArrayDir }

func (a *ChunkedArrayDirAdapter) GetIDKwargs(obj *DataObject) (Identity, error) {
	return idKwargsFromAttrs(obj.Attrs)
}

const chunkedMetaFile = "meta.json"
const chunkedDataFile = "data.chunk"

func (a *ChunkedArrayDirAdapter) WriteFile(path string, obj *DataObject) error {
	if err := a.fs.MkdirAll(path); err != nil {
		return err
	}

	attrs, err := SerializeAttrsForStorage(obj.Attrs)
	if err != nil {
		return err
	}
	meta := arrayHeader{Shape: obj.Shape, Dims: obj.Dims, Attrs: attrs}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	metaW, err := a.fs.Create(path + "/" + chunkedMetaFile)
	if err != nil {
		return err
	}
	if _, err := metaW.Write(metaBytes); err != nil {
		metaW.Close()
		return err
	}
	if err := metaW.Close(); err != nil {
		return err
	}

	dataW, err := a.fs.Create(path + "/" + chunkedDataFile)
	if err != nil {
		return err
	}
	defer dataW.Close()
	_, err = dataW.Write(obj.Body)
	return err
}

func (a *ChunkedArrayDirAdapter) ReadFile(path string) (*DataObject, error) {
	metaR, err := a.fs.Open(path + "/" + chunkedMetaFile)
	if err != nil {
		return nil, fmt.Errorf("reading chunked array metadata: %w", err)
	}
	defer metaR.Close()

	var meta arrayHeader
	if err := json.NewDecoder(metaR).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decoding chunked array metadata: %w", err)
	}

	dataR, err := a.fs.Open(path + "/" + chunkedDataFile)
	if err != nil {
		return nil, fmt.Errorf("reading chunked array data: %w", err)
	}
	defer dataR.Close()

	body, err := io.ReadAll(dataR)
	if err != nil {
		return nil, fmt.Errorf("reading chunked array data: %w", err)
	}

	return &DataObject{
		Kind:  KindChunkedArrayDir,
		Attrs: DeserializeAttrsFromStorage(meta.Attrs),
		Shape: meta.Shape,
		Dims:  meta.Dims,
		Body:  body,
	}, nil
}
