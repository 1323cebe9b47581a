package pagemem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReserveAlignment(t *testing.T) {
	requireT := require.New(t)

	for _, size := range []int{64, 4096, 1 << 16} {
		block, err := Reserve(size)
		requireT.NoError(err)
		requireT.Len(block.Bytes, size)
		requireT.Zero(block.Base & uintptr(size-1))
	}
}

func TestReserveRejectsInvalidSize(t *testing.T) {
	requireT := require.New(t)

	for _, size := range []int{0, -4096, 3000, 4097} {
		_, err := Reserve(size)
		requireT.Error(err)
	}
}

func TestContains(t *testing.T) {
	requireT := require.New(t)

	block, err := Reserve(4096)
	requireT.NoError(err)

	requireT.True(block.Contains(block.Base))
	requireT.True(block.Contains(block.Base + 4095))
	requireT.False(block.Contains(block.Base + 4096))
	requireT.False(block.Contains(block.Base - 1))
}

func TestMaskingYieldsBase(t *testing.T) {
	requireT := require.New(t)

	block, err := Reserve(4096)
	requireT.NoError(err)

	for _, offset := range []uintptr{0, 1, 32, 4095} {
		requireT.Equal(block.Base, (block.Base+offset)&^uintptr(4095))
	}
}
