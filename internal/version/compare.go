package version

import (
	"slices"
	"strconv"
	"strings"
)

// Compare orders artifact versions. Release parts compare numerically
// ("1.10.0" > "1.9.0"), missing parts count as zero ("1.0" == "1.0.0") and
// a qualified version precedes its release ("2.0.0-SNAPSHOT" < "2.0.0").
// The result is -1, 0 or +1.
func Compare(a, b string) int {
	relA, qualA, _ := strings.Cut(strings.TrimPrefix(a, "v"), "-")
	relB, qualB, _ := strings.Cut(strings.TrimPrefix(b, "v"), "-")

	if c := compareParts(strings.Split(relA, "."), strings.Split(relB, ".")); c != 0 {
		return c
	}
	switch {
	case qualA == qualB:
		return 0
	case qualA == "":
		return 1
	case qualB == "":
		return -1
	}
	return compareParts(strings.Split(qualA, "."), strings.Split(qualB, "."))
}

func compareParts(a, b []string) int {
	for i := range max(len(a), len(b)) {
		pa, pb := "0", "0"
		if i < len(a) {
			pa = a[i]
		}
		if i < len(b) {
			pb = b[i]
		}
		if c := comparePart(pa, pb); c != 0 {
			return c
		}
	}
	return 0
}

// comparePart compares numbers numerically, numbers above words, and
// words lexically.
func comparePart(a, b string) int {
	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	case errA == nil:
		return 1
	case errB == nil:
		return -1
	}
	return strings.Compare(a, b)
}

// Sort orders versions oldest first. Equal versions keep their order.
func Sort(versions []string) {
	slices.SortStableFunc(versions, Compare)
}
