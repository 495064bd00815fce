package ico

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/pkg/errors"
	icoenc "github.com/sergeymakinen/go-ico"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngOf(t *testing.T, size int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 5), G: uint8(y * 5), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func variants(t *testing.T) [][]byte {
	return [][]byte{pngOf(t, 16), pngOf(t, 32), pngOf(t, 48)}
}

type failingEncoder struct{ calls int }

func (f *failingEncoder) Name() string { return "broken" }

func (f *failingEncoder) Encode([][]byte) ([]byte, error) {
	f.calls++
	return nil, errors.New("boom")
}

func header(t *testing.T, data []byte) [3]uint16 {
	t.Helper()
	var h [3]uint16
	require.NoError(t, binary.Read(bytes.NewReader(data), binary.LittleEndian, &h))
	return h
}

func decodedSizes(t *testing.T, data []byte) []int {
	t.Helper()
	images, err := icoenc.DecodeAll(bytes.NewReader(data))
	require.NoError(t, err)
	sizes := make([]int, len(images))
	for i, img := range images {
		sizes[i] = img.Bounds().Dx()
	}
	return sizes
}

func TestPNGEncoder(t *testing.T) {
	pngs := variants(t)
	out, err := PNGEncoder{}.Encode(pngs)
	require.NoError(t, err)

	assert.Equal(t, [3]uint16{0, 1, 3}, header(t, out))
	assert.Equal(t, 6+3*16+len(pngs[0])+len(pngs[1])+len(pngs[2]), len(out))
	// first directory entry is 16x16 and points right after the directory
	assert.Equal(t, byte(16), out[6])
	assert.Equal(t, uint32(6+3*16), binary.LittleEndian.Uint32(out[6+12:6+16]))
	assert.ElementsMatch(t, []int{16, 32, 48}, decodedSizes(t, out))
}

func TestBMPEncoder(t *testing.T) {
	out, err := BMPEncoder{}.Encode(variants(t))
	require.NoError(t, err)

	assert.Equal(t, [3]uint16{0, 1, 3}, header(t, out))
	assert.ElementsMatch(t, []int{16, 32, 48}, decodedSizes(t, out))
}

func TestEncodersRejectBadInput(t *testing.T) {
	for _, enc := range []Encoder{PNGEncoder{}, BMPEncoder{}} {
		t.Run(enc.Name(), func(t *testing.T) {
			_, err := enc.Encode(nil)
			assert.ErrorIs(t, err, ErrNoImages)

			_, err = enc.Encode([][]byte{[]byte("not a png")})
			assert.Error(t, err)
		})
	}

	_, err := PNGEncoder{}.Encode([][]byte{pngOf(t, 300)})
	assert.Error(t, err)
}

func TestChainFallsBackWhenPrimaryFails(t *testing.T) {
	primary := &failingEncoder{}
	chain := Chain{primary, BMPEncoder{}}

	out, err := chain.Encode(variants(t))
	require.NoError(t, err)
	assert.Equal(t, 1, primary.calls)
	assert.NotEmpty(t, out)
	assert.ElementsMatch(t, []int{16, 32, 48}, decodedSizes(t, out))
}

func TestChainFirstSuccessWins(t *testing.T) {
	second := &failingEncoder{}
	out, err := Chain{PNGEncoder{}, second}.Encode(variants(t))
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Zero(t, second.calls)
}

func TestChainAllFail(t *testing.T) {
	a, b := &failingEncoder{}, &failingEncoder{}
	_, err := Chain{a, b}.Encode(variants(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all ico encoders failed")
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)

	_, err = Chain{}.Encode(variants(t))
	assert.Error(t, err)
}

func TestChainFromNames(t *testing.T) {
	chain, err := ChainFromNames([]string{"bmp", "png"})
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "bmp", chain[0].Name())

	chain, err = ChainFromNames(nil)
	require.NoError(t, err)
	assert.Equal(t, "png", chain[0].Name())

	_, err = ChainFromNames([]string{"webp"})
	assert.Error(t, err)
}
