package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProdInt(t *testing.T) {
	assert.Equal(t, 1024, ProdInt([]int{32, 32}))
	assert.Equal(t, 1, ProdInt([]int{1}))
	assert.Equal(t, 1, ProdInt(nil))
}

func TestContainsInt(t *testing.T) {
	assert.True(t, ContainsInt(3, []int{1, 2, 3}))
	assert.False(t, ContainsInt(4, []int{1, 2, 3}))
}

func TestComplement(t *testing.T) {
	assert.Equal(t, []int{1, 3}, Complement([]int{1, 2, 3}, []int{2, 4}))
	assert.Equal(t, []int{}, Complement([]int{}, []int{1}))
}
