package gridws

import (
	"testing"

	"github.com/tj/assert"
)

func TestRegistry(t *testing.T) {
	t.Run("register is idempotent", func(t *testing.T) {
		r := NewRegistry()
		c := newFakeConn("a")
		r.Register(c)
		r.Register(c)
		assert.Equal(t, 1, r.Len())
	})

	t.Run("unregister is idempotent", func(t *testing.T) {
		r := NewRegistry()
		c := newFakeConn("a")
		r.Register(c)
		r.Unregister(c)
		r.Unregister(c)
		assert.Equal(t, 0, r.Len())
	})

	t.Run("unregister of never-registered connection", func(t *testing.T) {
		r := NewRegistry()
		r.Register(newFakeConn("a"))
		r.Unregister(newFakeConn("ghost"))
		assert.Equal(t, 1, r.Len())
	})

	t.Run("forEach visits every member", func(t *testing.T) {
		r := NewRegistry()
		r.Register(newFakeConn("a"))
		r.Register(newFakeConn("b"))
		r.Register(newFakeConn("c"))

		seen := map[string]bool{}
		r.ForEach(func(c *Conn) { seen[c.ID()] = true })
		assert.Equal(t, 3, len(seen))
	})

	t.Run("forEach tolerates removal during enumeration", func(t *testing.T) {
		r := NewRegistry()
		r.Register(newFakeConn("a"))
		r.Register(newFakeConn("b"))
		r.Register(newFakeConn("c"))

		visited := 0
		r.ForEach(func(c *Conn) {
			visited++
			r.Unregister(c)
		})
		assert.Equal(t, 3, visited)
		assert.Equal(t, 0, r.Len())
	})
}
