package layout

import (
	"fmt"
	"hash/crc32"
)

// sessionChannelPrefix tags every derived channel name so it can never
// collide with a caller-chosen literal channel.
const sessionChannelPrefix = "vfl-"

// SessionID implements spec §4.6: a 32-bit rolling hash of the layout
// descriptor string, rendered in hex with a fixed prefix. The empty string
// always maps to the literal "default" so peers booting with no descriptor
// still land on one well-known channel.
func SessionID(descriptor string) string {
	if descriptor == "" {
		return "default"
	}
	sum := crc32.ChecksumIEEE([]byte(descriptor))
	return fmt.Sprintf("%s%08x", sessionChannelPrefix, sum)
}
