package orders

import (
	"encoding/binary"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewOrderID returns prefix + base36(unix millis) + base36(40 random bits),
// upper-cased. The random bits come from a v4 UUID.
func NewOrderID(prefix string, now time.Time) string {
	u := uuid.New()
	// 5 bytes = 40 bits
	var buf [8]byte
	copy(buf[3:], u[10:15])
	random := binary.BigEndian.Uint64(buf[:])

	return strings.ToUpper(prefix +
		strconv.FormatInt(now.UnixMilli(), 36) +
		strconv.FormatUint(random, 36))
}
