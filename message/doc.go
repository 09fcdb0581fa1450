// Package message defines the messages exchanged on the ring and the fixed
// id and key spaces they refer to.
package message
