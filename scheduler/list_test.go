package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listItem struct {
	next *listItem
	val  int
}

func (i *listItem) linkNext() **listItem { return &i.next }

func TestPendingList_PushPop(t *testing.T) {
	var l pendingList[*listItem]
	assert.True(t, l.Empty())

	l.PushBack(&listItem{val: 1})
	l.PushBack(&listItem{val: 2})
	l.PushBack(&listItem{val: 3})
	require.Equal(t, 3, l.Len())

	v, ok := l.PopFront()
	require.True(t, ok)
	assert.Equal(t, 1, v.val)

	v, ok = l.PopFront()
	require.True(t, ok)
	assert.Equal(t, 2, v.val)

	assert.Equal(t, 1, l.Len())
}

func TestPendingList_PopEmpty(t *testing.T) {
	var l pendingList[*listItem]
	_, ok := l.PopFront()
	assert.False(t, ok)
}

func TestPendingList_ForEachRemove(t *testing.T) {
	var l pendingList[*listItem]
	for i := 1; i <= 5; i++ {
		l.PushBack(&listItem{val: i})
	}

	var seen []int
	l.ForEachRemove(func(i *listItem) bool {
		seen = append(seen, i.val)
		return i.val%2 == 0
	})

	assert.Equal(t, []int{1, 2, 3, 4, 5}, seen)
	assert.Equal(t, 3, l.Len())

	var remaining []int
	l.ForEach(func(i *listItem) { remaining = append(remaining, i.val) })
	assert.Equal(t, []int{1, 3, 5}, remaining)
}

func TestPendingList_RemoveTail(t *testing.T) {
	var l pendingList[*listItem]
	l.PushBack(&listItem{val: 1})
	l.PushBack(&listItem{val: 2})

	l.ForEachRemove(func(i *listItem) bool { return i.val == 2 })
	assert.Equal(t, 1, l.Len())

	l.PushBack(&listItem{val: 3})
	var out []int
	l.ForEach(func(i *listItem) { out = append(out, i.val) })
	assert.Equal(t, []int{1, 3}, out)
}
