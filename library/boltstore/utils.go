package boltstore

import (
	bolt "go.etcd.io/bbolt"

	"bitbucket.org/kleinnic74/pinphotos/consts"
)

// pageCursor walks a bucket in key order or reverse key order, skipping
// the first offset entries and stopping after limit entries. A negative
// limit means no limit.
type pageCursor struct {
	c      *bolt.Cursor
	order  consts.SortOrder
	offset int
	limit  int
}

func newPageCursor(c *bolt.Cursor, order consts.SortOrder, offset, limit int) *pageCursor {
	if offset < 0 {
		offset = 0
	}
	return &pageCursor{c: c, order: order, offset: offset, limit: limit}
}

func (p *pageCursor) First() ([]byte, []byte) {
	var k, v []byte
	if p.order == consts.Descending {
		k, v = p.c.Last()
	} else {
		k, v = p.c.First()
	}
	for ; p.offset > 0 && k != nil; p.offset-- {
		k, v = p.step()
	}
	return p.take(k, v)
}

func (p *pageCursor) Next() ([]byte, []byte) {
	return p.take(p.step())
}

func (p *pageCursor) step() ([]byte, []byte) {
	if p.order == consts.Descending {
		return p.c.Prev()
	}
	return p.c.Next()
}

func (p *pageCursor) take(k, v []byte) ([]byte, []byte) {
	if p.limit == 0 || k == nil {
		return nil, nil
	}
	if p.limit > 0 {
		p.limit--
	}
	return k, v
}
