package youtube

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// UnknownDuration is the display value for missing or unparseable durations.
const UnknownDuration = "Unknown"

var isoDurationRegex = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)(?:\.\d+)?S)?)?$`)

// DurationSeconds decodes an ISO 8601 duration such as "PT1H2M3S" into
// seconds. Missing components count as zero; days fold into hours.
func DurationSeconds(code string) (int64, bool) {
	code = strings.TrimSpace(code)
	if code == "" || code == "P" {
		return 0, false
	}
	m := isoDurationRegex.FindStringSubmatch(code)
	if m == nil {
		return 0, false
	}
	var parts [4]int64
	for i := range parts {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil {
			return 0, false
		}
		parts[i] = n
	}
	return parts[0]*86400 + parts[1]*3600 + parts[2]*60 + parts[3], true
}

// ParseDuration converts an ISO 8601 duration into "H:MM:SS" when it has
// hours and "M:SS" otherwise. It returns "Unknown" for empty or unparseable
// input.
func ParseDuration(code string) string {
	total, ok := DurationSeconds(code)
	if !ok {
		return UnknownDuration
	}
	return FormatDuration(total)
}

// FormatDuration renders seconds in the display form used by ParseDuration.
func FormatDuration(total int64) string {
	if total < 0 {
		return UnknownDuration
	}
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// ToMinutes parses a "H:MM:SS" or "M:SS" display string into fractional
// minutes. It returns 0 for "Unknown" and anything else it cannot parse.
func ToMinutes(display string) float64 {
	fields := strings.Split(strings.TrimSpace(display), ":")
	if len(fields) < 2 || len(fields) > 3 {
		return 0
	}
	nums := make([]float64, len(fields))
	for i, f := range fields {
		n, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return 0
		}
		nums[i] = float64(n)
	}
	if len(nums) == 3 {
		return nums[0]*60 + nums[1] + nums[2]/60
	}
	return nums[0] + nums[1]/60
}
