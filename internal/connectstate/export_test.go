package connectstate

import "time"

// SetNow overrides the codec clock in tests.
func (c *Codec) SetNow(now func() time.Time) {
	c.now = now
}
