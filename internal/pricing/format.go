package pricing

import (
	"strconv"
	"strings"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
)

// Format renders an amount the way the storefront displays prices (es-AR):
// dot as thousands separator, comma before the cents, cents omitted when zero.
// "$12.500", "$1.234,56", "-$3,05".
func Format(m entity.Money) string {
	neg := m < 0
	if neg {
		m = -m
	}
	units := int64(m) / 100
	cents := int64(m) % 100

	s := strconv.FormatInt(units, 10)

	var b strings.Builder
	b.Grow(len(s) + len(s)/3 + 6)
	if neg {
		b.WriteString("-$")
	} else {
		b.WriteString("$")
	}

	rem := len(s) % 3
	if rem == 0 {
		rem = 3
	}
	b.WriteString(s[:rem])
	for i := rem; i < len(s); i += 3 {
		b.WriteByte('.')
		b.WriteString(s[i : i+3])
	}

	if cents != 0 {
		b.WriteByte(',')
		if cents < 10 {
			b.WriteByte('0')
		}
		b.WriteString(strconv.FormatInt(cents, 10))
	}
	return b.String()
}
