package models

import "time"

// IPBlock is a time-boxed denial of login attempts from one source address.
// A later block for the same address overwrites BlockedUntil (last write
// wins, durations are never merged). Expiry is lazy: a block is dead once
// now >= BlockedUntil, whether or not the row still exists.
type IPBlock struct {
	IPAddress    string    `db:"ip_address"`
	BlockedUntil time.Time `db:"blocked_until"`
	CreatedAt    time.Time `db:"created_at"`
}
