// Package keyset holds the keys owned by a single ring node.
//
// The set is a 64-bit field with one bit per key. Keys outside
// [0, Capacity) are ignored by every operation.
package keyset

import (
	"math/bits"
	"strconv"
	"strings"
)

// Capacity is the size of the key space.
const Capacity = 64

type KeySet struct {
	bits uint64
}

func Valid(key int) bool {
	return key >= 0 && key < Capacity
}

func (set *KeySet) Add(key int) {
	if Valid(key) {
		set.bits |= 1 << uint(key)
	}
}

func (set *KeySet) Remove(key int) {
	if Valid(key) {
		set.bits &^= 1 << uint(key)
	}
}

func (set *KeySet) Contains(key int) bool {
	if !Valid(key) {
		return false
	}
	return set.bits&(1<<uint(key)) != 0
}

func (set *KeySet) Len() int {
	return bits.OnesCount64(set.bits)
}

func (set *KeySet) Empty() bool {
	return set.bits == 0
}

// Each calls f for every key in ascending order. f may mutate the set;
// iteration works on the state captured before the first call.
func (set *KeySet) Each(f func(key int)) {
	rest := set.bits
	for rest != 0 {
		key := bits.TrailingZeros64(rest)
		rest &^= 1 << uint(key)
		f(key)
	}
}

// Keys returns the keys in ascending order.
func (set *KeySet) Keys() []int {
	ret := make([]int, 0, set.Len())
	set.Each(func(key int) {
		ret = append(ret, key)
	})
	return ret
}

func (set *KeySet) String() string {
	var sb strings.Builder
	set.Each(func(key int) {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.Itoa(key))
	})
	return sb.String()
}
