package client

import (
	"github.com/JWilliamson45/chord/message"
	"github.com/huandu/skiplist"
)

// Directory is the client side view of which node ids were inserted. It
// answers which node should own a key once the ring is quiescent.
type Directory struct {
	list *skiplist.SkipList
}

// NewDirectory returns a directory holding MAIN only.
func NewDirectory() *Directory {
	dir := &Directory{
		list: skiplist.New(skiplist.Int),
	}
	dir.list.Set(message.Main, struct{}{})
	return dir
}

// Add reports whether id was absent.
func (dir *Directory) Add(id int) bool {
	if dir.Contains(id) {
		return false
	}
	dir.list.Set(id, struct{}{})
	return true
}

func (dir *Directory) Remove(id int) {
	if id == message.Main {
		return
	}
	dir.list.Remove(id)
}

func (dir *Directory) Contains(id int) bool {
	return dir.list.Get(id) != nil
}

func (dir *Directory) Len() int {
	return dir.list.Len()
}

func (dir *Directory) Full() bool {
	return dir.list.Len() >= message.MaxNodes
}

// IDs returns the ids in ring order, MAIN last.
func (dir *Directory) IDs() []int {
	ids := make([]int, 0, dir.list.Len())
	for e := dir.list.Front(); e != nil; e = e.Next() {
		ids = append(ids, e.Key().(int))
	}
	return ids
}

// Owner is the smallest id not below key. Keys past every id wrap to MAIN.
func (dir *Directory) Owner(key int) int {
	e := dir.list.Find(key)
	if e == nil {
		return message.Main
	}
	return e.Key().(int)
}

// Free returns the ids that can still be inserted.
func (dir *Directory) Free() []int {
	free := make([]int, 0, message.Main)
	for id := 0; id < message.Main; id++ {
		if !dir.Contains(id) {
			free = append(free, id)
		}
	}
	return free
}
