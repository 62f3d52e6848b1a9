package board

import (
	"fmt"
	"strings"
)

// FormatPrice formats an asset price with six decimals, or "—" when absent.
func FormatPrice(p *float64) string {
	if p == nil {
		return "—"
	}
	return FormatFloat(*p, 6)
}

// FormatFloat formats v with comma-separated thousands and d decimals.
func FormatFloat(v float64, d int) string {
	s := fmt.Sprintf("%.*f", d, v)
	dot := strings.IndexByte(s, '.')
	intPart := s
	frac := ""
	if dot >= 0 {
		intPart, frac = s[:dot], s[dot:]
	}
	neg := strings.HasPrefix(intPart, "-")
	if neg {
		intPart = intPart[1:]
	}
	if len(intPart) > 3 {
		var b strings.Builder
		start := len(intPart) % 3
		if start > 0 {
			b.WriteString(intPart[:start])
		}
		for i := start; i < len(intPart); i += 3 {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(intPart[i : i+3])
		}
		intPart = b.String()
	}
	if neg {
		intPart = "-" + intPart
	}
	return intPart + frac
}

// FormatChange formats a 24h change percentage as "+X.XX%" / "-X.XX%", or
// "—" when absent.
func FormatChange(pct *float64) string {
	if pct == nil {
		return "—"
	}
	if *pct >= 0 {
		return fmt.Sprintf("+%.2f%%", *pct)
	}
	return fmt.Sprintf("%.2f%%", *pct)
}

// FormatVolume formats a 24h volume with B/M/K suffixes, or "—" when absent.
func FormatVolume(v *float64) string {
	if v == nil {
		return "—"
	}
	switch {
	case *v >= 1e9:
		return fmt.Sprintf("%.1fB", *v/1e9)
	case *v >= 1e6:
		return fmt.Sprintf("%.1fM", *v/1e6)
	case *v >= 1e3:
		return fmt.Sprintf("%.1fK", *v/1e3)
	default:
		return fmt.Sprintf("%.0f", *v)
	}
}

// FormatRank formats a market-cap rank as "#N", or "#N/A" when absent.
func FormatRank(rank *int) string {
	if rank == nil {
		return "#N/A"
	}
	return fmt.Sprintf("#%d", *rank)
}
