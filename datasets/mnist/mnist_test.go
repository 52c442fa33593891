package mnist

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurlang/varbatch/datasets"
	"github.com/neurlang/varbatch/sampler"
)

func writeGzip(t *testing.T, path string, data []byte) {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func header(words ...uint32) []byte {
	var out = make([]byte, 4*len(words))
	for i, w := range words {
		binary.BigEndian.PutUint32(out[4*i:], w)
	}
	return out
}

// three 2x2 digits, the second one fully white
func writeSet(t *testing.T, imgName, valName string) string {
	t.Helper()
	dir := t.TempDir()
	pix := []byte{0, 0, 0, 0, 255, 255, 255, 255, 10, 20, 30, 40}
	writeGzip(t, filepath.Join(dir, imgName), append(header(imagesMagic, 3, 2, 2), pix...))
	writeGzip(t, filepath.Join(dir, valName), append(header(labelsMagic, 3), 4, 7, 1))
	return dir
}

func TestOpenTest(t *testing.T) {
	dir := writeSet(t, inferSetImg, inferSetVal)
	d, err := Open(dir, datasets.Test, SkipVerify())
	require.NoError(t, err)
	assert.Equal(t, 3, d.Len())

	s, err := d.Fetch(context.Background(), sampler.SampleRequest{Index: 1, Height: 8, Width: 8})
	require.NoError(t, err)
	assert.Equal(t, 7, s.Target)
	assert.Equal(t, []int{3, 8, 8}, s.Samples.Shape)
	assert.InDelta(t, 1.0, s.Samples.Data[0], 0.01)

	_, err = d.Fetch(context.Background(), sampler.SampleRequest{Index: 3, Height: 8, Width: 8})
	assert.True(t, errors.Is(err, datasets.ErrIndexOutOfRange))
}

func TestOpenTrain(t *testing.T) {
	dir := writeSet(t, trainSetImg, trainSetVal)
	d, err := Open(dir, datasets.Train, SkipVerify(), WithSeed(1))
	require.NoError(t, err)
	d.SetEpoch(3)
	s, err := d.Fetch(context.Background(), sampler.SampleRequest{Index: 0, Height: 4, Width: 6})
	require.NoError(t, err)
	assert.Equal(t, 4, s.Target)
	assert.Equal(t, []int{3, 4, 6}, s.Samples.Shape)

	_, err = Open(dir, datasets.Test, SkipVerify())
	assert.Error(t, err, "test split reads the t10k files")
}

func TestChecksum(t *testing.T) {
	dir := writeSet(t, inferSetImg, inferSetVal)
	_, err := Open(dir, datasets.Validation)
	assert.True(t, errors.Is(err, ErrChecksum))
}

func TestDecodeErrors(t *testing.T) {
	_, err := decodeImages(header(labelsMagic, 1, 1, 1))
	assert.Error(t, err)
	_, err = decodeImages(header(imagesMagic, 2, 2, 2))
	assert.Error(t, err)
	_, err = decodeLabels(header(labelsMagic, 5))
	assert.Error(t, err)

	dir := t.TempDir()
	writeGzip(t, filepath.Join(dir, inferSetImg), append(header(imagesMagic, 2, 1, 1), 1, 2))
	writeGzip(t, filepath.Join(dir, inferSetVal), append(header(labelsMagic, 1), 0))
	_, err = Open(dir, datasets.Test, SkipVerify())
	assert.Error(t, err)
}
