package graph

import "crypto/rand"

const idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// IDLength is the length of generated node and connection ids.
const IDLength = 8

// NewID returns a random 8-character alphanumeric id. Ids only need to be
// unique within a single project, so 8 characters is plenty.
func NewID() string {
	buf := make([]byte, IDLength)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	for i, b := range buf {
		buf[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return string(buf)
}
